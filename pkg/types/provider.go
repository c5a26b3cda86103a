package types

type Provider string

const (
	ProviderApple  Provider = "apple"
	ProviderGoogle Provider = "google"
)

func (p Provider) Valid() bool {
	return p == ProviderApple || p == ProviderGoogle
}
