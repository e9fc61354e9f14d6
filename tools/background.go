package tools

import (
	"context"

	"github.com/jcrabapple/Nanopaca/chat"
)

// ImagePicker asks the user for an image when the conversation holds none.
// The handle resolves with base64 image data, or "" when the user cancels.
type ImagePicker interface {
	PickImage() *Pending[string]
}

// ImageProcessor removes the background from a base64-encoded image and
// returns the processed image in the same encoding.
type ImageProcessor interface {
	RemoveBackground(ctx context.Context, imageB64 string) (string, error)
}

// BackgroundRemover processes the most recent image in the conversation, or
// one the user supplies on request.
type BackgroundRemover struct {
	Picker    ImagePicker
	Processor ImageProcessor
}

func (b *BackgroundRemover) Descriptor() Descriptor {
	return Descriptor{
		Name:             "background_remover",
		DisplayName:      "Background Remover",
		Icon:             "image-missing-symbolic",
		Description:      "Requests the user to upload an image and automatically removes its background",
		Runnable:         true,
		RequiredBackends: []string{"image-processing"},
	}
}

func (b *BackgroundRemover) Run(ctx context.Context, inv Invocation) (string, string, error) {
	if b.Processor == nil {
		return "Background removal is not available", "Error: No image processor available", nil
	}

	if inv.View != nil {
		inv.View.UpdateMessage("Loading Image...\n")
	}

	imageB64 := latestImage(inv.History)
	if imageB64 == "" && b.Picker != nil {
		picked, err := b.Picker.PickImage().Await(ctx)
		if err != nil {
			return "Sorry, an error occurred", "An error occurred", nil
		}
		imageB64 = picked
	}
	if imageB64 == "" {
		return "Please provide an image and try again!",
			"Error: User didn't attach an image", nil
	}

	processed, err := b.Processor.RemoveBackground(ctx, imageB64)
	if err != nil || processed == "" {
		return "Sorry, an error occurred", "An error occurred", nil
	}

	att := chat.NewAttachment("Output", chat.AttachmentImage, processed)
	if inv.Target != nil {
		inv.Target.AddAttachment(att)
	}
	if inv.Attach != nil {
		inv.Attach(att)
	}

	return "Background removed successfully!", "Successful", nil
}

// latestImage returns the most recent image block in the history.
func latestImage(history []chat.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		for _, blk := range history[i].Blocks {
			if blk.Type == chat.BlockImage && blk.Data != "" {
				return blk.Data
			}
		}
	}
	return ""
}
