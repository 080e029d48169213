package domain

// ArtifactStore persists opaque serialized model artifacts. Artifacts are
// versionless: compatibility is all-or-nothing, so if any named artifact
// is missing all of them are retrained together.
type ArtifactStore interface {
	// Load returns the artifact bytes, or found=false when no artifact
	// with that name exists.
	Load(name string) (data []byte, found bool, err error)

	// Save writes the artifact bytes atomically.
	Save(name string, data []byte) error
}

// Named model artifacts.
const (
	ArtifactAnomalyModel = "isolation_forest"
	ArtifactClassifier   = "random_forest"
	ArtifactScaler       = "scaler"
)
