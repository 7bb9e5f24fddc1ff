package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/urlbind-dev/urlbind/pkg/querystring"
)

func resolveCmd() *cobra.Command {
	var (
		rawURL   string
		key      string
		setValue string
		del      bool
		read     bool
		keepNull bool
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a query parameter against a URL",
		Long: `Run the pure parameter resolver from the command line.

Exactly one of --set, --delete, or --read selects the request:

  urlbind resolve --url "/blog?tag=js&page=2" --key page --set 3
  urlbind resolve --url "/blog?tag=js" --key tag --delete
  urlbind resolve --url "/blog?tag=js" --key tag --read

Prints the resulting URL, then the resolved value. With --quiet only
the URL is printed, for shell substitution.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := requestedValue(cmd, setValue, del, read)
			if err != nil {
				return err
			}
			if key == "" {
				return errors.New("--key must not be empty")
			}

			result := querystring.Resolve(rawURL, key, req, querystring.ResolveOptions{
				KeepNull: keepNull,
			})

			fmt.Fprintln(cmd.OutOrStdout(), result.URL)
			if quiet {
				return nil
			}
			if result.Value.Present {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, result.Value.Value)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is absent\n", key)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&rawURL, "url", "u", "/", "URL to resolve against")
	cmd.Flags().StringVarP(&key, "key", "k", "", "Query parameter name")
	cmd.Flags().StringVar(&setValue, "set", "", "Set the parameter to this value")
	cmd.Flags().BoolVar(&del, "delete", false, "Delete the parameter")
	cmd.Flags().BoolVar(&read, "read", false, "Read the parameter without changing the URL")
	cmd.Flags().BoolVar(&keepNull, "keep-null", false, "Make --delete a read instead of a removal")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the resulting URL")
	cmd.MarkFlagRequired("key")

	return cmd
}

// requestedValue maps the mutually exclusive request flags onto the
// codec's tri-state value.
func requestedValue(cmd *cobra.Command, setValue string, del, read bool) (querystring.Value, error) {
	set := cmd.Flags().Changed("set")

	n := 0
	for _, on := range []bool{set, del, read} {
		if on {
			n++
		}
	}
	if n != 1 {
		return querystring.Absent, errors.New("exactly one of --set, --delete, --read is required")
	}

	switch {
	case set:
		return querystring.String(setValue), nil
	case del:
		return querystring.Null, nil
	default:
		return querystring.Absent, nil
	}
}
