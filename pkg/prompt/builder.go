package prompt

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/gemrelay/gemrelay/pkg/config"
	"github.com/gemrelay/gemrelay/pkg/models"
)

// Builder composes the prompt sent to a provider from the template file,
// the mode's instruction and the user's text.
type Builder struct {
	templateFile string
	general      string
	translate    string
}

// New creates a Builder from the prompt configuration.
func New(cfg config.PromptConfig) *Builder {
	return &Builder{
		templateFile: cfg.TemplateFile,
		general:      cfg.GeneralInstruction,
		translate:    cfg.TranslateInstruction,
	}
}

// Build returns template + instruction + text, skipping empty parts. The
// template file is read on every call so edits apply without a restart.
func (b *Builder) Build(mode models.Mode, text string) string {
	instruction := b.general
	if mode.IsTranslating() {
		instruction = b.translate
	}

	var parts []string
	for _, p := range []string{b.template(), instruction, text} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, "\n\n")
}

func (b *Builder) template() string {
	if b.templateFile == "" {
		return ""
	}
	data, err := os.ReadFile(b.templateFile)
	if err != nil {
		log.WithError(err).WithField("file", b.templateFile).Debug("prompt template unavailable")
		return ""
	}
	return string(data)
}
