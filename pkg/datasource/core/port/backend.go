package port

// ProviderGroup is the fx value group back ends contribute their Backend to.
const ProviderGroup = "datasource_providers"

// Backend pairs a provider with the discriminator it serves.
type Backend struct {
	Type     Type
	Provider NamedProvider
}
