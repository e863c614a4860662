package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/adamwoolhether/simplesdk/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"
)

var ErrDataRequired = errors.New("request body is required (use --data)")

func newGetCommand(v *viper.Viper) *cobra.Command {
	var query []string

	cmd := &cobra.Command{
		Use:     "get PATH",
		Aliases: []string{"list", "show"},
		Short:   "Fetch a resource or a page of resources",
		Example: `  sdkctl get /pss/v1/requests --query "id:in=1,2,3"
  sdkctl get /pss/v1/requests/42 -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			opts, err := callOptions(query, false)
			if err != nil {
				return err
			}

			p, err := c.Get(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}

			return printPayload(cmd.OutOrStdout(), v.GetString("output"), p)
		},
	}

	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "query parameter as key=value, repeatable")

	return cmd
}

func newCreateCommand(v *viper.Viper) *cobra.Command {
	var (
		data string
		sets []string
	)

	cmd := &cobra.Command{
		Use:   "create PATH",
		Short: "Create a resource",
		Example: `  sdkctl create /pss/v1/requests --data '{"subject":"help"}'
  sdkctl create /pss/v1/requests --data @request.yaml
  sdkctl create /pss/v1/requests --set subject=help --set priority=2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			body, err := readBody(data, sets, cmd.InOrStdin())
			if err != nil {
				return err
			}

			self, err := c.Create(cmd.Context(), args[0], body)
			if err != nil {
				return reportValidation(cmd.ErrOrStderr(), err)
			}

			return printSelf(cmd.OutOrStdout(), v.GetString("output"), self)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON or YAML body, @file to read a file, @- for stdin")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "set a body field as path=value, repeatable")

	return cmd
}

func newUpdateCommand(v *viper.Viper) *cobra.Command {
	var (
		data string
		sets []string
		put  bool
	)

	cmd := &cobra.Command{
		Use:   "update PATH",
		Short: "Update a resource with PATCH, or PUT with --put",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			body, err := readBody(data, sets, cmd.InOrStdin())
			if err != nil {
				return err
			}

			opts, err := callOptions(nil, put)
			if err != nil {
				return err
			}

			self, err := c.Update(cmd.Context(), args[0], body, opts...)
			if err != nil {
				return reportValidation(cmd.ErrOrStderr(), err)
			}

			return printSelf(cmd.OutOrStdout(), v.GetString("output"), self)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON or YAML body, @file to read a file, @- for stdin")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "set a body field as path=value, repeatable")
	cmd.Flags().BoolVar(&put, "put", false, "replace the resource with PUT instead of PATCH")

	return cmd
}

func newDeleteCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "delete PATH",
		Aliases: []string{"destroy", "rm"},
		Short:   "Delete a resource",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if err := c.Destroy(cmd.Context(), args[0]); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return err
		},
	}
}

func callOptions(query []string, put bool) ([]client.CallOption, error) {
	var opts []client.CallOption

	if len(query) > 0 {
		kv, err := keyValues(query)
		if err != nil {
			return nil, fmt.Errorf("parsing query: %w", err)
		}

		params := make(map[string]any, len(kv))
		for k, val := range kv {
			params[k] = val
		}
		opts = append(opts, client.WithQuery(params))
	}

	if put {
		opts = append(opts, client.WithPut())
	}

	return opts, nil
}

// readBody parses --data as YAML, which accepts JSON as well, then applies
// every --set. A leading "@" on data names a file to read, "@-" reads
// stdin. A --set value that is a JSON literal is stored as such, anything
// else as a string.
func readBody(data string, sets []string, stdin io.Reader) (map[string]any, error) {
	if data == "" && len(sets) == 0 {
		return nil, ErrDataRequired
	}

	body := make(map[string]any)
	if data != "" {
		raw := []byte(data)
		if name, ok := strings.CutPrefix(data, "@"); ok {
			var err error
			if name == "-" {
				raw, err = io.ReadAll(stdin)
			} else {
				raw, err = os.ReadFile(name)
			}
			if err != nil {
				return nil, fmt.Errorf("reading body: %w", err)
			}
		}

		if err := yaml.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("parsing body: %w", err)
		}
	}

	if len(sets) == 0 {
		return body, nil
	}

	doc, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding body: %w", err)
	}

	for _, kv := range sets {
		path, val, ok := strings.Cut(kv, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKeyValue, kv)
		}

		if json.Valid([]byte(val)) {
			doc, err = sjson.SetRawBytes(doc, path, []byte(val))
		} else {
			doc, err = sjson.SetBytes(doc, path, val)
		}
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", path, err)
		}
	}

	out := make(map[string]any)
	if err := json.Unmarshal(doc, &out); err != nil {
		return nil, fmt.Errorf("decoding body: %w", err)
	}

	return out, nil
}

// reportValidation prints every validation detail before returning err.
func reportValidation(w io.Writer, err error) error {
	for _, eo := range client.ValidationErrors(err) {
		line := "  - " + eo.Detail
		if len(eo.Source) > 0 {
			line += " " + string(eo.Source)
		}
		fmt.Fprintln(w, line)
	}

	return err
}
