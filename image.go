package main

import (
	"github.com/meinside/openai-go"
)

// generateImages forwards a prompt to the image-generation endpoint and
// returns the results as base64 data URLs.
func (s *Server) generateImages(prompt, size string, n int) ([]string, error) {
	model := s.conf.ImageModel

	options := openai.ImageOptions{}.
		SetModel(model).
		SetResponseFormat(openai.IamgeResponseFormatBase64JSON)

	if model == "dall-e-3" {
		// dall-e-3 only generates one image per request
		n = 1
	}
	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}
	options.SetN(n)
	options.SetSize(imageSize(size, model))

	created, err := s.ai.CreateImage(prompt, options)
	if err != nil {
		return nil, &UpstreamError{Message: "failed to create image", Detail: err.Error()}
	}

	Log.WithField("results", len(created.Data)).Info("image generation complete")

	images := make([]string, 0, len(created.Data))
	for _, item := range created.Data {
		if item.Base64JSON == nil {
			continue
		}
		images = append(images, "data:image/png;base64,"+*item.Base64JSON)
	}

	if len(images) == 0 {
		return nil, &UpstreamError{Message: "no images returned"}
	}

	return images, nil
}

func imageSize(size, model string) openai.ImageSize {
	if model == "dall-e-3" {
		switch size {
		case "1792x1024":
			return openai.ImageSize1792x1024_DallE3
		case "1024x1792":
			return openai.ImageSize1024x1792_DallE3
		default:
			return openai.ImageSize1024x1024_DallE3
		}
	}

	switch size {
	case "256x256":
		return openai.ImageSize256x256_DallE2
	case "512x512":
		return openai.ImageSize512x512_DallE2
	default:
		return openai.ImageSize1024x1024_DallE2
	}
}
