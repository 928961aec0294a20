package fal

import (
	"context"

	"github.com/tnicklin/dreamshop/models"
)

// Generator turns a prompt into an image.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GeneratedImage, error)
}

type submitRequest struct {
	Prompt              string  `json:"prompt"`
	NegativePrompt      string  `json:"negative_prompt,omitempty"`
	ImageSize           string  `json:"image_size"`
	NumInferenceSteps   int     `json:"num_inference_steps"`
	GuidanceScale       float64 `json:"guidance_scale"`
	NumImages           int     `json:"num_images"`
	EnableSafetyChecker bool    `json:"enable_safety_checker"`
	Seed                *int64  `json:"seed,omitempty"`
}

type queueResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type statusResponse struct {
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
}

type image struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

type resultResponse struct {
	Images []image `json:"images"`
	Seed   int64   `json:"seed"`
}

const (
	statusInQueue    = "IN_QUEUE"
	statusInProgress = "IN_PROGRESS"
	statusCompleted  = "COMPLETED"
)
