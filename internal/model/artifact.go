package model

import "fmt"

// Attribute is one trait entry in artifact metadata.
// Field names are consumed verbatim by downstream registries.
type Attribute struct {
	TraitValue string `json:"trait_value"` // Humanized category label
	Value      string `json:"value"`       // Option name
}

// Metadata is the per-artifact record written to metadata/<num>.json
type Metadata struct {
	Description string      `json:"description"`
	Name        string      `json:"name"`
	Rarity      float64     `json:"rarity"`
	Attributes  []Attribute `json:"attributes"`
	Image       string      `json:"image,omitempty"` // Set after upload
	Date        int64       `json:"date,omitempty"`  // Upload timestamp, epoch millis
}

// Artifact is the final output unit for one drawn combination
type Artifact struct {
	DrawResult
	PNG       []byte   `json:"-"` // Encoded composited image
	ImagePath string   `json:"image_path"`
	Metadata  Metadata `json:"metadata"`
}

// ArtifactName returns the display name for an artifact number
func ArtifactName(project string, num int) string {
	return fmt.Sprintf("%s#%d", project, num)
}
