package model

// Professor is a reviewer who can verify generated course content.
// Professors have no login; they act through review links only.
type Professor struct {
	Email           string   `json:"email" yaml:"email"`
	Name            string   `json:"name" yaml:"name"`
	Specializations []string `json:"specializations" yaml:"specializations"`
	Bio             string   `json:"bio" yaml:"bio"`
}
