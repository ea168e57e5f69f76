package model

// LanguageSpec is the execution-backend metadata registered for one language id.
type LanguageSpec struct {
	ID               string
	DisplayName      string
	BackendRuntimeID string
	Extension        string
	Sandbox          SandboxSpec
}

// SandboxSpec describes how the container backend builds and runs a source file.
// CompileCmd is empty for interpreted languages.
type SandboxSpec struct {
	Image      string
	SourceFile string
	CompileCmd string
	RunCmd     string
}
