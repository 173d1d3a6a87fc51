package ports

// DefinitionSource supplies raw survey documents to the registry.
// Implementations decide where documents live (filesystem, object store,
// embedded); the registry owns parsing, validation, and caching.
type DefinitionSource interface {
	// Read returns the raw document for a survey id.
	// Returns domain.ErrSurveyNotFound if the id is unknown.
	Read(surveyID string) ([]byte, error)

	// IDs lists every survey id the source can serve, sorted.
	IDs() ([]string, error)
}
