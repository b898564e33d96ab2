package commands

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/inkr/configstore"
	"github.com/teranos/inkr/display"
	"github.com/teranos/inkr/engine"
)

var (
	incrementsInput inputFlags
	templatesInput  inputFlags
)

// IncrementsCmd lists increments
var IncrementsCmd = &cobra.Command{
	Use:   "increments",
	Short: "List increments (all, or matching an input)",
	RunE:  runIncrements,
}

// TemplatesCmd lists templates
var TemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List templates (all, or matching an input)",
	RunE:  runTemplates,
}

// PluginsCmd lists the registered technologies
var PluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List compiled-in technologies",
	RunE:  runPlugins,
}

func init() {
	incrementsInput.register(IncrementsCmd, false)
	templatesInput.register(TemplatesCmd, false)
}

type incrementView struct {
	Trigger     string   `json:"trigger"`
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	Templates   []string `json:"templates"`
}

type templateView struct {
	Trigger     string `json:"trigger"`
	ID          string `json:"id"`
	File        string `json:"file"`
	Destination string `json:"destination"`
}

func runIncrements(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}

	var incs []*configstore.Increment
	if incrementsInput.path != "" {
		input, err := incrementsInput.read(e)
		if err != nil {
			return err
		}
		incs, err = e.GetMatchingIncrements(input)
		if err != nil {
			return err
		}
	} else if incs, err = e.GetAllIncrements(); err != nil {
		return err
	}

	views := make([]incrementView, len(incs))
	for i, inc := range incs {
		v := incrementView{Trigger: inc.TriggerID, ID: inc.ID, Description: inc.Description, Templates: []string{}}
		for _, t := range inc.Templates {
			v.Templates = append(v.Templates, t.ID)
		}
		views[i] = v
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(views)
	}
	for _, v := range views {
		pterm.Printf("%s/%s %s\n", pterm.Gray(v.Trigger), pterm.LightCyan(v.ID), v.Description)
		pterm.Printf("  %s %s\n", pterm.Gray("templates:"), strings.Join(v.Templates, ", "))
	}
	return nil
}

func runTemplates(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}

	var input interface{}
	var tpls []*configstore.Template
	if templatesInput.path != "" {
		if input, err = templatesInput.read(e); err != nil {
			return err
		}
		tpls, err = e.GetMatchingTemplates(input)
	} else {
		tpls, err = e.GetAllTemplates()
	}
	if err != nil {
		return err
	}

	views := make([]templateView, len(tpls))
	for i, t := range tpls {
		views[i] = templateView{Trigger: t.TriggerID, ID: t.ID, File: t.TemplateFile, Destination: t.DestinationPath}
		if input != nil {
			views[i].Destination = resolvedDestination(e, t, input)
		}
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(views)
	}
	for _, v := range views {
		pterm.Printf("%s/%s %s %s\n", pterm.Gray(v.Trigger), pterm.LightCyan(v.ID), pterm.Gray("→"), v.Destination)
	}
	return nil
}

// resolvedDestination falls back to the raw expression when the model
// cannot fill it
func resolvedDestination(e *engine.Engine, t *configstore.Template, input interface{}) string {
	dest, err := e.ResolveTemplateDestinationPath(".", t, input)
	if err != nil {
		return t.DestinationPath
	}
	return dest
}

type pluginView struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Matchers    []string `json:"matchers"`
	FileFilter  string   `json:"file_filter"`
	Reader      bool     `json:"reader"`
	Containers  bool     `json:"containers"`
}

func runPlugins(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}

	var views []pluginView
	for _, name := range e.Registry().List() {
		b, err := e.Registry().Lookup(name)
		if err != nil {
			return err
		}
		views = append(views, pluginView{
			Name:        b.Metadata.Name,
			Version:     b.Metadata.Version,
			Description: b.Metadata.Description,
			Matchers:    b.Matcher.MatcherTypes(),
			FileFilter:  b.FileFilter,
			Reader:      b.Reader != nil,
			Containers:  b.Resolver != nil,
		})
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(views)
	}
	for _, v := range views {
		pterm.Printf("%s %s %s\n", pterm.LightCyan(v.Name), pterm.Gray("v"+v.Version), v.Description)
		pterm.Printf("  %s %s\n", pterm.Gray("matchers:"), strings.Join(v.Matchers, ", "))
		pterm.Printf("  %s %s\n", pterm.Gray("files:"), v.FileFilter)
	}
	return nil
}
