package types

// CodeArtifact is the mode-specific result of one generation turn. Each mode
// produces a structurally different shape, so the variants are distinct types
// behind a sealed interface rather than one mutable result struct.
type CodeArtifact interface {
	Mode() GenMode
}

// HTMLArtifact holds a single complete HTML document.
type HTMLArtifact struct {
	HTML string
}

func (HTMLArtifact) Mode() GenMode { return ModeHTML }

// MultiFileArtifact holds the html/css/js triplet. CSS and JS may be empty;
// HTML is always present.
type MultiFileArtifact struct {
	HTML string
	CSS  string
	JS   string
}

func (MultiFileArtifact) Mode() GenMode { return ModeMultiFile }

// ProjectArtifact records the files a tool-driven generation already wrote.
// There is no final text to parse; the writes are the artifact.
type ProjectArtifact struct {
	ProjectMode  GenMode
	WrittenPaths []string
}

func (p ProjectArtifact) Mode() GenMode { return p.ProjectMode }
