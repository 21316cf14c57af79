package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simp-lee/hrdesk/internal/crud"
	"github.com/simp-lee/hrdesk/internal/domain"
)

func newDeleteCmd(c *cli) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <entity> <id>",
		Short: "Delete a record after confirmation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := c.entity(args[0])
			if err != nil {
				return err
			}
			client, err := c.client(entity)
			if err != nil {
				return err
			}
			ctx := c.requestContext(cmd)
			target, err := findRecord(ctx, client, entity, args[1])
			if err != nil {
				return err
			}

			gate := crud.NewDeleteGate(entity, client,
				crud.WithLogger(c.logger),
				crud.WithNotifier(c.notifier()),
			)
			if err := gate.Request(target, "row-"+args[1]); err != nil {
				return err
			}
			if !yes && !c.confirm(deletePrompt(entity, target)) {
				gate.Cancel()
				fmt.Fprintln(c.errOut, "Cancelled")
				return nil
			}

			res, err := gate.Confirm(ctx)
			if err != nil {
				return errors.New(domain.UserMessage(err, "Failed to delete "+strings.ToLower(entity.Singular)))
			}
			if c.opts.output != formatTable {
				return render(c.out, c.opts.output, mutationOutput{Message: res.Message}, nil)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirm asks on stdin. Anything but y or yes declines.
func (c *cli) confirm(prompt string) bool {
	fmt.Fprintf(c.errOut, "%s [y/N]: ", prompt)
	line, _ := bufio.NewReader(c.in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func deletePrompt(e domain.Entity, r domain.Record) string {
	id, _ := r.ID()
	prompt := fmt.Sprintf("Delete %s %s", strings.ToLower(e.Singular), id)
	if len(e.Columns) > 0 {
		if label := cellText(r[e.Columns[0].Field]); label != domain.EmptyMarker {
			prompt += " (" + label + ")"
		}
	}
	return prompt + "?"
}
