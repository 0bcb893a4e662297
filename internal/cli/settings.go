package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/pkg/types"
)

var (
	setProvider        string
	setGoogleKey       string
	setGoogleModel     string
	setOpenRouterKey   string
	setOpenRouterModel string
	setDefaultStack    string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change provider settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored settings (API keys masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			stored, err := a.store.Settings()
			if err != nil {
				return err
			}
			effective := a.cfg.SeedSettings(stored)
			printSettings(cmd, stored, effective)
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change stored settings",
	Long: `Change stored settings. Only the given flags are changed.

Example:
  stackforge settings set --provider openrouter --openrouter-key sk-or-...
  stackforge settings set --google-key AIza... --google-model gemini-2.5-pro
  stackforge settings set --default-stack react`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			settings, err := a.store.Settings()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("provider") {
				tag := strings.ToLower(strings.TrimSpace(setProvider))
				if tag != types.ProviderGoogle && tag != types.ProviderOpenRouter {
					return apperr.Newf(apperr.KindInvalidInput, "unknown provider %q (use google or openrouter)", setProvider)
				}
				settings.ActiveProvider = tag
			}
			if flags.Changed("google-key") {
				settings.Google.APIKey = strings.TrimSpace(setGoogleKey)
			}
			if flags.Changed("google-model") {
				settings.Google.Model = strings.TrimSpace(setGoogleModel)
			}
			if flags.Changed("openrouter-key") {
				settings.OpenRouter.APIKey = strings.TrimSpace(setOpenRouterKey)
			}
			if flags.Changed("openrouter-model") {
				settings.OpenRouter.Model = strings.TrimSpace(setOpenRouterModel)
			}
			if flags.Changed("default-stack") {
				if _, ok := a.gen.Catalog().Lookup(setDefaultStack); !ok {
					return apperr.Newf(apperr.KindInvalidInput, "unknown stack %q", setDefaultStack)
				}
				settings.DefaultStack = strings.ToLower(strings.TrimSpace(setDefaultStack))
			}

			if err := a.store.SaveSettings(settings); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings saved.")
			printSettings(cmd, settings, a.cfg.SeedSettings(settings))
			return nil
		})
	},
}

func init() {
	f := settingsSetCmd.Flags()
	f.StringVar(&setProvider, "provider", "", "Active provider: google or openrouter")
	f.StringVar(&setGoogleKey, "google-key", "", "Google Gemini API key")
	f.StringVar(&setGoogleModel, "google-model", "", "Google Gemini model")
	f.StringVar(&setOpenRouterKey, "openrouter-key", "", "OpenRouter API key")
	f.StringVar(&setOpenRouterModel, "openrouter-model", "", "OpenRouter model")
	f.StringVar(&setDefaultStack, "default-stack", "", "Stack used when generate has no --stack")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

func printSettings(cmd *cobra.Command, stored, effective types.Settings) {
	out := cmd.OutOrStdout()
	masked := effective.Redacted()

	source := func(storedKey string) string {
		if storedKey == "" {
			return " (from config)"
		}
		return ""
	}
	keyLine := func(key, storedKey string) string {
		if key == "" {
			return "(not set)"
		}
		return key + source(storedKey)
	}

	fmt.Fprintf(out, "Active provider: %s\n", masked.ActiveProvider)
	fmt.Fprintf(out, "Default stack:   %s\n", masked.DefaultStack)
	fmt.Fprintln(out, "Google:")
	fmt.Fprintf(out, "  API key: %s\n", keyLine(masked.Google.APIKey, stored.Google.APIKey))
	fmt.Fprintf(out, "  Model:   %s\n", masked.Google.Model)
	fmt.Fprintln(out, "OpenRouter:")
	fmt.Fprintf(out, "  API key: %s\n", keyLine(masked.OpenRouter.APIKey, stored.OpenRouter.APIKey))
	fmt.Fprintf(out, "  Model:   %s\n", masked.OpenRouter.Model)
}
