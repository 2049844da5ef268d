package transcribe

import (
	"context"
	"fmt"
	"strings"

	listenapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// Transcription is the result of transcribing one audio file.
type Transcription struct {
	Text     string
	Duration float64
}

// Deepgram transcribes recorded audio messages through the Deepgram
// prerecorded REST API.
type Deepgram struct {
	client *listenapi.Client
	model  string
}

// NewDeepgram builds a transcriber. The model defaults to nova-2 when empty.
func NewDeepgram(apiKey, model string) *Deepgram {
	if strings.TrimSpace(model) == "" {
		model = "nova-2"
	}

	c := listen.NewREST(apiKey, &interfaces.ClientOptions{})
	return &Deepgram{client: listenapi.New(c), model: model}
}

// TranscribeFile sends the audio file at path to Deepgram and returns the
// transcript text and the audio duration in seconds. The language is a BCP-47
// code taken from the user's learning-language setting.
func (d *Deepgram) TranscribeFile(ctx context.Context, path, language string) (Transcription, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Language:    language,
		Punctuate:   true,
		SmartFormat: true,
	}

	res, err := d.client.FromFile(ctx, path, options)
	if err != nil {
		return Transcription{}, fmt.Errorf("deepgram transcription: %w", err)
	}

	if len(res.Results.Channels) == 0 || len(res.Results.Channels[0].Alternatives) == 0 {
		return Transcription{}, fmt.Errorf("deepgram: empty transcription result for %s", path)
	}

	text := strings.TrimSpace(res.Results.Channels[0].Alternatives[0].Transcript)
	if text == "" {
		return Transcription{}, fmt.Errorf("deepgram: no speech detected in %s", path)
	}

	return Transcription{Text: text, Duration: res.Metadata.Duration}, nil
}
