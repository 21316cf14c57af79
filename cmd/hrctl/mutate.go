package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simp-lee/hrdesk/internal/crud"
	"github.com/simp-lee/hrdesk/internal/domain"
)

// maxLookupPages bounds the scan for a record by id.
const maxLookupPages = 1000

var errValidation = errors.New("validation failed")

type mutationOutput struct {
	Message string        `json:"message" yaml:"message"`
	Record  domain.Record `json:"record,omitempty" yaml:"record,omitempty"`
}

func newCreateCmd(c *cli) *cobra.Command {
	var sets, files []string

	cmd := &cobra.Command{
		Use:     "create <entity>",
		Short:   "Create a record",
		Example: `  hrctl create departments --set name="People Ops" --set code=PEOPLE --set active=true`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := c.entity(args[0])
			if err != nil {
				return err
			}
			sub, err := buildSubmission(entity, nil, sets, files)
			if err != nil {
				return err
			}
			client, err := c.client(entity)
			if err != nil {
				return err
			}

			form := crud.NewFormController(entity, client,
				crud.WithLogger(c.logger),
				crud.WithNotifier(c.notifier()),
				crud.WithSession(client.Session()),
				crud.WithValidator(c.validator),
			)
			if err := form.Open(domain.ModeCreate, nil); err != nil {
				return err
			}
			res, err := form.Submit(c.requestContext(cmd), sub)
			if err != nil {
				return c.submitFailed(form, err)
			}
			return c.printMutation(entity, res)
		},
	}
	addMutationFlags(cmd, &sets, &files)
	return cmd
}

func newUpdateCmd(c *cli) *cobra.Command {
	var sets, files []string

	cmd := &cobra.Command{
		Use:   "update <entity> <id>",
		Short: "Change fields of an existing record",
		Long: `update loads the current record, applies the --set and --file
assignments on top of it and sends the result. Fields not mentioned keep
their value.`,
		Example: `  hrctl update employees 42 --set status=inactive`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := c.entity(args[0])
			if err != nil {
				return err
			}
			if len(sets) == 0 && len(files) == 0 {
				return errors.New("nothing to update: pass --set or --file")
			}
			client, err := c.client(entity)
			if err != nil {
				return err
			}
			ctx := c.requestContext(cmd)
			current, err := findRecord(ctx, client, entity, args[1])
			if err != nil {
				return err
			}

			form := crud.NewFormController(entity, client,
				crud.WithLogger(c.logger),
				crud.WithNotifier(c.notifier()),
				crud.WithSession(client.Session()),
				crud.WithValidator(c.validator),
			)
			if err := form.Open(domain.ModeUpdate, current); err != nil {
				return err
			}
			sub, err := buildSubmission(entity, formValues(entity, form.State().Values), sets, files)
			if err != nil {
				form.Close()
				return err
			}
			res, err := form.Submit(ctx, sub)
			if err != nil {
				return c.submitFailed(form, err)
			}
			return c.printMutation(entity, res)
		},
	}
	addMutationFlags(cmd, &sets, &files)
	return cmd
}

func addMutationFlags(cmd *cobra.Command, sets, files *[]string) {
	cmd.Flags().StringArrayVar(sets, "set", nil, "field value as key=value, repeatable")
	cmd.Flags().StringArrayVar(files, "file", nil, "upload as field=path, repeatable")
}

// buildSubmission overlays key=value assignments and file uploads on base.
func buildSubmission(e domain.Entity, base map[string]string, sets, files []string) (crud.Submission, error) {
	sub := crud.Submission{Values: make(map[string]string, len(e.Fields))}
	for k, v := range base {
		sub.Values[k] = v
	}

	values, err := parseAssignments(sets)
	if err != nil {
		return crud.Submission{}, err
	}
	for name, value := range values {
		f, ok := e.Field(name)
		if !ok {
			return crud.Submission{}, fmt.Errorf("entity %q has no field %q", e.Name, name)
		}
		if f.Type.IsUpload() {
			return crud.Submission{}, fmt.Errorf("field %q takes a file: use --file %s=<path>", name, name)
		}
		sub.Values[name] = value
	}

	paths, err := parseAssignments(files)
	if err != nil {
		return crud.Submission{}, err
	}
	for name, path := range paths {
		f, ok := e.Field(name)
		if !ok || !f.Type.IsUpload() {
			return crud.Submission{}, fmt.Errorf("entity %q has no upload field %q", e.Name, name)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return crud.Submission{}, fmt.Errorf("read %s: %w", name, err)
		}
		if sub.Files == nil {
			sub.Files = make(map[string]domain.FileUpload)
		}
		sub.Files[name] = domain.FileUpload{Filename: filepath.Base(path), Data: data}
	}
	return sub, nil
}

// formValues turns a seeded form back into the text a user would submit.
// Uploads are left out so an update keeps the stored file.
func formValues(e domain.Entity, values map[string]any) map[string]string {
	out := make(map[string]string, len(values))
	for _, f := range e.Fields {
		if f.Type.IsUpload() {
			continue
		}
		switch v := values[f.Name].(type) {
		case nil:
			out[f.Name] = ""
		case string:
			out[f.Name] = v
		case bool:
			out[f.Name] = strconv.FormatBool(v)
		case float64:
			out[f.Name] = strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			out[f.Name] = v.String()
		default:
			out[f.Name] = fmt.Sprint(v)
		}
	}
	return out
}

// findRecord pages through the collection until it meets id.
func findRecord(ctx context.Context, src crud.Lister, e domain.Entity, id string) (domain.Record, error) {
	for page := 0; page < maxLookupPages; page++ {
		res, err := src.List(ctx, domain.ListQuery{Page: page, PageSize: e.PageSize})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.ListErrorMessage, err)
		}
		for _, row := range res.Rows {
			if rid, ok := row.ID(); ok && rid == id {
				return row, nil
			}
		}
		if len(res.Rows) == 0 || (page+1)*e.PageSize >= res.Total {
			break
		}
	}
	return nil, fmt.Errorf("%s %q not found", strings.ToLower(e.Singular), id)
}

func (c *cli) submitFailed(form *crud.FormController, err error) error {
	st := form.State()
	if len(st.FieldErrors) > 0 {
		names := make([]string, 0, len(st.FieldErrors))
		for name := range st.FieldErrors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(c.errOut, "  %s: %s\n", name, st.FieldErrors[name])
		}
		return errValidation
	}
	if st.SubmitError != "" {
		return errors.New(st.SubmitError)
	}
	return err
}

func (c *cli) printMutation(e domain.Entity, res domain.MutationResult) error {
	out := mutationOutput{Message: res.Message, Record: res.Record}
	return render(c.out, c.opts.output, out, func(w io.Writer) {
		if res.Record == nil {
			writeRow(w, res.Message)
			return
		}
		writeRow(w, "FIELD", "VALUE")
		id, _ := res.Record.ID()
		writeRow(w, "id", id)
		for _, f := range e.Fields {
			writeRow(w, f.Name, cellText(res.Record[f.Name]))
		}
	})
}
