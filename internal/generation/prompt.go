package generation

import (
	"fmt"
	"strings"
	"text/template"
)

const instructionsSeparator = "\n\nAdditional instructions: "

var defaultRefineTemplate = template.Must(template.New("refine").Parse(
	"Improve this {{.Description}} app:\n\n{{.Previous}}\n\n{{.Directive}}" +
		"{{if .Instructions}} {{.Instructions}}{{end}}",
))

// Prompt is the system instruction and user message for one completion call.
type Prompt struct {
	System string
	User   string
}

// templateData is what stage templates can reference.
type templateData struct {
	Description  string
	Previous     string
	Directive    string
	Instructions string
}

// BuildPrompt renders the prompt for the stage at index. The first stage
// sends the description, followed by the supplementary instructions when
// present. Later stages render their template over the description, the
// previous stage's full output, the stage directive and the instructions.
func BuildPrompt(stage Stage, index int, previous string, req Request) (Prompt, error) {
	p := Prompt{System: stage.System}

	if index == 0 && stage.Template == nil {
		p.User = req.Description
		if req.SupplementaryInstructions != "" {
			p.User += instructionsSeparator + req.SupplementaryInstructions
		}
		return p, nil
	}

	tmpl := stage.Template
	if tmpl == nil {
		tmpl = defaultRefineTemplate
	}

	var sb strings.Builder
	err := tmpl.Execute(&sb, templateData{
		Description:  req.Description,
		Previous:     previous,
		Directive:    stage.Directive,
		Instructions: req.SupplementaryInstructions,
	})
	if err != nil {
		return Prompt{}, fmt.Errorf("render stage %q prompt: %w", stage.Name, err)
	}
	p.User = sb.String()
	return p, nil
}
