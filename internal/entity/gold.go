package entity

// GoldSample is a reference record used to score extraction accuracy.
// Immutable once loaded; matched against completed jobs by document ID.
type GoldSample struct {
	ID     string            `yaml:"id" json:"id"`
	Fields map[string]string `yaml:"fields" json:"fields"`
}
