package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simp-lee/hrdesk/internal/crud"
	"github.com/simp-lee/hrdesk/internal/domain"
)

type listOutput struct {
	Entity     string            `json:"entity" yaml:"entity"`
	Page       int               `json:"page" yaml:"page"`
	TotalPages int               `json:"totalPages" yaml:"total_pages"`
	Total      int               `json:"total" yaml:"total"`
	Filters    map[string]string `json:"filters,omitempty" yaml:"filters,omitempty"`
	Rows       []domain.Record   `json:"rows" yaml:"rows"`
}

func newListCmd(c *cli) *cobra.Command {
	var (
		page    int
		keyword string
		filters []string
	)

	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "Show one page of records",
		Example: `  hrctl list employees --filter status=active
  hrctl list departments --page 2 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := c.entity(args[0])
			if err != nil {
				return err
			}
			if page < 1 {
				return fmt.Errorf("invalid page %d: must be >= 1", page)
			}
			applied, err := parseFilters(entity, filters, keyword)
			if err != nil {
				return err
			}
			client, err := c.client(entity)
			if err != nil {
				return err
			}

			list := crud.NewListController(entity, client, crud.WithLogger(c.logger))
			list.Restore(page-1, applied)
			list.Mount(c.requestContext(cmd))

			st := list.State()
			if st.Status == crud.StatusFailed {
				return errors.New(st.ErrorMessage)
			}
			return c.printList(entity, st)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().StringVar(&keyword, "keyword", "", "free-text search")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "field filter as key=value, repeatable")
	return cmd
}

func (c *cli) printList(e domain.Entity, st crud.ListState) error {
	out := listOutput{
		Entity:     e.Name,
		Page:       st.Page + 1,
		TotalPages: st.TotalPages(),
		Total:      st.Total,
		Filters:    st.Filters,
		Rows:       make([]domain.Record, 0, len(st.Rows)),
	}
	for _, row := range st.Rows {
		out.Rows = append(out.Rows, plainRecord(row))
	}

	return render(c.out, c.opts.output, out, func(w io.Writer) {
		header := []string{"ID"}
		for _, col := range e.Columns {
			header = append(header, strings.ToUpper(col.Title))
		}
		writeRow(w, header...)
		for _, row := range st.Rows {
			id, _ := row.ID()
			cells := []string{id}
			for _, col := range e.Columns {
				cells = append(cells, cellText(row[col.Field]))
			}
			writeRow(w, cells...)
		}
		fmt.Fprintf(w, "\npage %d of %d, %s\n", out.Page, max(out.TotalPages, 1), plural(out.Total, "record"))
	})
}

// parseFilters validates key=value filters against the entity's filter keys.
func parseFilters(e domain.Entity, raw []string, keyword string) (map[string]string, error) {
	filters, err := parseAssignments(raw)
	if err != nil {
		return nil, err
	}
	if k := strings.TrimSpace(keyword); k != "" {
		filters[domain.KeywordFilter] = k
	}
	accepted := e.FilterKeys()
	for key := range filters {
		if !slices.Contains(accepted, key) {
			return nil, fmt.Errorf("entity %q has no filter %q (accepted: %s)", e.Name, key, strings.Join(accepted, ", "))
		}
	}
	return filters, nil
}

// parseAssignments splits repeated key=value flags. Later keys win.
func parseAssignments(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, item := range raw {
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q: want key=value", item)
		}
		out[key] = value
	}
	return out, nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
