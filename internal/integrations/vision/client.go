// Package vision describes images using Amazon Rekognition labels.
package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// NoDescription is returned when the service finds nothing worth naming.
const NoDescription = "No description available."

const (
	defaultMaxLabels     = 10
	defaultMinConfidence = 70
)

// rekognitionAPI is the minimal Rekognition interface required by Client.
type rekognitionAPI interface {
	DetectLabels(ctx context.Context, in *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
	DetectText(ctx context.Context, in *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// Client turns image bytes into a one-line description.
type Client struct {
	api rekognitionAPI
}

func New(api rekognitionAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("vision: api must not be nil")
	}
	return &Client{api: api}, nil
}

// DescribeImage returns a short description built from detected labels, plus
// any printed lines of text found in the image.
func (c *Client) DescribeImage(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("vision: image is empty")
	}
	img := &types.Image{Bytes: data}

	labels, err := c.api.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         img,
		MaxLabels:     aws.Int32(defaultMaxLabels),
		MinConfidence: aws.Float32(defaultMinConfidence),
	})
	if err != nil {
		return "", fmt.Errorf("vision: detect labels: %w", err)
	}

	var names []string
	for _, l := range labels.Labels {
		if l.Name != nil && *l.Name != "" {
			names = append(names, strings.ToLower(*l.Name))
		}
	}

	var lines []string
	text, err := c.api.DetectText(ctx, &rekognition.DetectTextInput{Image: img})
	if err != nil {
		return "", fmt.Errorf("vision: detect text: %w", err)
	}
	for _, d := range text.TextDetections {
		if d.Type == types.TextTypesLine && d.DetectedText != nil {
			lines = append(lines, *d.DetectedText)
		}
	}

	return describe(names, lines), nil
}

func describe(labels, lines []string) string {
	if len(labels) == 0 && len(lines) == 0 {
		return NoDescription
	}
	var b strings.Builder
	if len(labels) > 0 {
		b.WriteString("an image containing ")
		b.WriteString(strings.Join(labels, ", "))
	}
	if len(lines) > 0 {
		if b.Len() > 0 {
			b.WriteString(". ")
		}
		b.WriteString("Visible text: ")
		b.WriteString(strings.Join(lines, " / "))
	}
	return b.String()
}
