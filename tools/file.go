package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/deepnoodle-ai/agent"
)

// DefaultMaxReadChars bounds the text returned by read_file
const DefaultMaxReadChars = 5000

// DefaultAllowedExtensions are the file types the file tools may touch
var DefaultAllowedExtensions = []string{".txt", ".md", ".json", ".csv"}

// FileOptions configures the read_file and write_file tools
type FileOptions struct {
	// BaseDir resolves relative paths. Empty means the working directory.
	BaseDir string

	AllowedExtensions []string
	MaxReadChars      int
}

func (o FileOptions) withDefaults() FileOptions {
	if len(o.AllowedExtensions) == 0 {
		o.AllowedExtensions = DefaultAllowedExtensions
	}
	if o.MaxReadChars <= 0 {
		o.MaxReadChars = DefaultMaxReadChars
	}
	return o
}

func (o FileOptions) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("file_path cannot be empty")
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(o.AllowedExtensions, ext) {
		return "", fmt.Errorf("file type %q is not allowed", ext)
	}
	if !filepath.IsAbs(path) && o.BaseDir != "" {
		path = filepath.Join(o.BaseDir, path)
	}
	return filepath.Clean(path), nil
}

// ReadFileParams are the read_file arguments
type ReadFileParams struct {
	FilePath string `json:"file_path"`
	Encoding string `json:"encoding,omitempty"`
}

// ReadFile returns the contents of a text file
type ReadFile struct {
	opts FileOptions
}

// NewReadFile returns the read_file tool
func NewReadFile(opts FileOptions) agent.Tool {
	return agent.NewTypedTool[ReadFileParams](&ReadFile{opts: opts.withDefaults()})
}

func (t *ReadFile) Name() string {
	return "read_file"
}

func (t *ReadFile) Description() string {
	return "Read a text file (" + strings.Join(t.opts.AllowedExtensions, ", ") + ")"
}

func (t *ReadFile) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": stringSchema("Path of the file to read"),
			"encoding":  stringSchema("Text encoding, utf-8 by default"),
		},
		"required": []any{"file_path"},
	}
}

func (t *ReadFile) CoerceStringInput(input string) (map[string]any, bool) {
	return map[string]any{"file_path": input}, true
}

func (t *ReadFile) Execute(ctx context.Context, params ReadFileParams) (string, error) {
	switch strings.ToLower(params.Encoding) {
	case "", "utf-8", "utf8":
	default:
		return "", fmt.Errorf("unsupported encoding %q", params.Encoding)
	}
	path, err := t.opts.resolve(params.FilePath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file %s not found", params.FilePath)
		}
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file %s is not valid utf-8", params.FilePath)
	}

	content := []rune(string(data))
	text := string(content)
	if len(content) > t.opts.MaxReadChars {
		text = fmt.Sprintf("%s\n... (%d more characters omitted)",
			string(content[:t.opts.MaxReadChars]), len(content)-t.opts.MaxReadChars)
	}
	return fmt.Sprintf("Contents of %s:\n%s", params.FilePath, text), nil
}

// WriteFileParams are the write_file arguments
type WriteFileParams struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
	Mode     string `json:"mode,omitempty"`
}

// WriteFile writes or appends to a text file, creating parent directories
type WriteFile struct {
	opts FileOptions
}

// NewWriteFile returns the write_file tool
func NewWriteFile(opts FileOptions) agent.Tool {
	return agent.NewTypedTool[WriteFileParams](&WriteFile{opts: opts.withDefaults()})
}

func (t *WriteFile) Name() string {
	return "write_file"
}

func (t *WriteFile) Description() string {
	return "Write content to a text file. Mode w overwrites and mode a appends."
}

func (t *WriteFile) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": stringSchema("Path of the file to write"),
			"content":   stringSchema("Text to write"),
			"mode":      map[string]any{"type": "string", "enum": []any{"w", "a"}},
		},
		"required": []any{"file_path", "content"},
	}
}

func (t *WriteFile) Execute(ctx context.Context, params WriteFileParams) (string, error) {
	path, err := t.opts.resolve(params.FilePath)
	if err != nil {
		return "", err
	}
	flags := os.O_CREATE | os.O_WRONLY
	switch params.Mode {
	case "", "w":
		flags |= os.O_TRUNC
	case "a":
		flags |= os.O_APPEND
	default:
		return "", fmt.Errorf("unsupported mode %q", params.Mode)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(params.Content); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("Wrote %d characters to %s", utf8.RuneCountInString(params.Content), params.FilePath), nil
}
