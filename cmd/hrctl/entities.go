package main

import (
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simp-lee/hrdesk/internal/domain"
)

type fieldInfo struct {
	Name       string   `json:"name" yaml:"name"`
	Type       string   `json:"type" yaml:"type"`
	Required   bool     `json:"required" yaml:"required"`
	Filterable bool     `json:"filterable" yaml:"filterable"`
	Options    []string `json:"options,omitempty" yaml:"options,omitempty"`
	Ref        string   `json:"ref,omitempty" yaml:"ref,omitempty"`
}

type entityInfo struct {
	Name     string      `json:"name" yaml:"name"`
	Title    string      `json:"title" yaml:"title"`
	PageSize int         `json:"pageSize" yaml:"page_size"`
	Filters  []string    `json:"filters" yaml:"filters"`
	Fields   []fieldInfo `json:"fields" yaml:"fields"`
}

func newEntityInfo(e domain.Entity) entityInfo {
	info := entityInfo{
		Name:     e.Name,
		Title:    e.Title,
		PageSize: e.PageSize,
		Filters:  e.FilterKeys(),
	}
	for _, f := range e.Fields {
		info.Fields = append(info.Fields, fieldInfo{
			Name:       f.Name,
			Type:       string(f.Type),
			Required:   f.Required,
			Filterable: f.Filterable,
			Options:    f.Options,
			Ref:        f.Ref,
		})
	}
	return info
}

func newEntitiesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List the entities hrctl can manage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []entityInfo
			for _, e := range c.catalog.All() {
				infos = append(infos, newEntityInfo(e))
			}
			return render(c.out, c.opts.output, infos, func(w io.Writer) {
				writeRow(w, "NAME", "TITLE", "PAGE SIZE", "FILTERS")
				for _, info := range infos {
					writeRow(w, info.Name, info.Title, strconv.Itoa(info.PageSize), strings.Join(info.Filters, ","))
				}
			})
		},
	}
}
