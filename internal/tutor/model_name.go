package tutor

import "fmt"

// ModelName is the provider-side model identifier stored on a tutor.
type ModelName string

const (
	ModelGPT4       ModelName = "gpt-4-0613"
	ModelGPT35Turbo ModelName = "gpt-3.5-turbo-0613"
)

// PublicModelName is the model vocabulary exposed to API consumers; internal
// identifiers never appear on the wire.
type PublicModelName string

const (
	PublicModelGPT4       PublicModelName = "gpt4"
	PublicModelGPT35Turbo PublicModelName = "gpt35"
)

// Internal maps a public model name to its internal identifier, failing on
// unknown names.
func (p PublicModelName) Internal() (ModelName, error) {
	switch p {
	case PublicModelGPT4:
		return ModelGPT4, nil
	case PublicModelGPT35Turbo:
		return ModelGPT35Turbo, nil
	default:
		return "", fmt.Errorf("tutor: unknown model name %q", p)
	}
}

// Public maps an internal model identifier to its public name, failing on
// unknown identifiers.
func (m ModelName) Public() (PublicModelName, error) {
	switch m {
	case ModelGPT4:
		return PublicModelGPT4, nil
	case ModelGPT35Turbo:
		return PublicModelGPT35Turbo, nil
	default:
		return "", fmt.Errorf("tutor: unknown internal model %q", m)
	}
}
