// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/secrets"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/sigil-dev/graphscope/pkg/rdf"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// endpointPreset is a well-known public endpoint offered by the wizard.
type endpointPreset struct {
	Type string
	URL  string
}

var endpointPresets = []endpointPreset{
	{Type: config.EndpointWikidata, URL: "https://query.wikidata.org/sparql"},
	{Type: config.EndpointDBpedia, URL: "https://dbpedia.org/sparql"},
}

// initWizardStep tracks which step of the wizard is active.
type initWizardStep int

const (
	stepEndpoint initWizardStep = iota // select endpoint type
	stepURL                            // confirm or edit the URL
	stepLang                           // label language
	stepToken                          // optional bearer token
	stepValidate                       // ASK probe (spinner)
	stepDone                           // wizard complete
	stepError                          // terminal error
)

// initResult holds the collected wizard configuration.
type initResult struct {
	Type  string
	URL   string
	Lang  string
	Token string
}

// endpointConfig returns the configuration the probe runs against.
func (r initResult) endpointConfig() *config.Config {
	cfg := config.Default()
	cfg.Endpoint.Type = r.Type
	cfg.Endpoint.URL = r.URL
	cfg.Endpoint.Lang = r.Lang
	cfg.Endpoint.AuthToken = r.Token
	return cfg
}

// --- bubbletea messages ---

type (
	validationSuccessMsg struct{}
	validationErrorMsg   struct{ err error }
	configWrittenMsg     struct{ path string }
)

// --- lipgloss styles ---

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step           initWizardStep
	presetIdx      int
	urlInput       textinput.Model
	langInput      textinput.Model
	tokenInput     textinput.Model
	spinner        spinner.Model
	result         initResult
	validationErr  string
	configPath     string
	secretStore    secrets.Store
	errFinal       error
	skipProbe      bool
	forceOverwrite bool
}

func newInitModel(store secrets.Store) initModel {
	url := textinput.New()
	url.Placeholder = "https://example.org/sparql"
	url.CharLimit = 2048

	lang := textinput.New()
	lang.Placeholder = "en"
	lang.CharLimit = 16

	token := textinput.New()
	token.Placeholder = "leave empty for public endpoints"
	token.EchoMode = textinput.EchoPassword
	token.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:        stepEndpoint,
		urlInput:    url,
		langInput:   lang,
		tokenInput:  token,
		spinner:     sp,
		secretStore: store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		m.step = stepURL
		m.urlInput.Focus()
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	return m.updateInputs(msg)
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepEndpoint:
		return m.handleEndpointKey(msg)
	case stepURL:
		return m.handleURLInput(msg)
	case stepLang:
		return m.handleLangInput(msg)
	case stepToken:
		return m.handleTokenInput(msg)
	}
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleEndpointKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.presetIdx > 0 {
			m.presetIdx--
		}
	case "down", "j":
		if m.presetIdx < len(endpointPresets)-1 {
			m.presetIdx++
		}
	case "enter":
		preset := endpointPresets[m.presetIdx]
		m.result.Type = preset.Type
		m.step = stepURL
		m.validationErr = ""
		m.urlInput.SetValue(preset.URL)
		m.urlInput.CursorEnd()
		m.urlInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleURLInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		url := strings.TrimSpace(m.urlInput.Value())
		if url == "" {
			m.validationErr = "endpoint URL must not be empty"
			return m, nil
		}
		if !rdf.IsURI(url) || !(strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")) {
			m.validationErr = "endpoint URL must be an http(s) URL"
			return m, nil
		}
		m.result.URL = url
		m.validationErr = ""
		m.urlInput.Blur()
		m.step = stepLang
		if m.langInput.Value() == "" {
			m.langInput.SetValue("en")
		}
		m.langInput.Focus()
		return m, textinput.Blink
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.urlInput, cmd = m.urlInput.Update(msg)
	return m, cmd
}

func (m initModel) handleLangInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		lang := strings.TrimSpace(m.langInput.Value())
		if lang == "" || strings.ContainsAny(lang, " \t\"") {
			m.validationErr = "language must be a tag such as en or de"
			return m, nil
		}
		m.result.Lang = lang
		m.validationErr = ""
		m.langInput.Blur()
		m.step = stepToken
		m.tokenInput.Focus()
		return m, textinput.Blink
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.langInput, cmd = m.langInput.Update(msg)
	return m, cmd
}

func (m initModel) handleTokenInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.result.Token = strings.TrimSpace(m.tokenInput.Value())
		m.validationErr = ""
		m.tokenInput.Blur()
		if m.skipProbe {
			return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
		}
		m.step = stepValidate
		return m, tea.Batch(
			m.spinner.Tick,
			validateEndpointCmd(m.result),
		)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.tokenInput, cmd = m.tokenInput.Update(msg)
	return m, cmd
}

func (m initModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.step {
	case stepURL:
		m.urlInput, cmd = m.urlInput.Update(msg)
	case stepLang:
		m.langInput, cmd = m.langInput.Update(msg)
	case stepToken:
		m.tokenInput, cmd = m.tokenInput.Update(msg)
	}
	return m, cmd
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  graphscope setup  ") + "\n\n")

	switch m.step {
	case stepEndpoint:
		b.WriteString(promptStyle.Render("Step 1/4: Endpoint type") + "\n\n")
		for i, p := range endpointPresets {
			line := fmt.Sprintf("%-10s %s", p.Type, p.URL)
			if i == m.presetIdx {
				b.WriteString(selectedStyle.Render("  > "+line) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+line) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepURL:
		b.WriteString(promptStyle.Render("Step 2/4: "+m.result.Type+" endpoint URL") + "\n\n")
		b.WriteString(m.urlInput.View() + "\n")
		m.writeHint(&b)

	case stepLang:
		b.WriteString(promptStyle.Render("Step 3/4: Label language") + "\n\n")
		b.WriteString(m.langInput.View() + "\n")
		m.writeHint(&b)

	case stepToken:
		b.WriteString(promptStyle.Render("Step 4/4: Bearer token (optional)") + "\n\n")
		b.WriteString(m.tokenInput.View() + "\n")
		b.WriteString(dimStyle.Render("Stored in the OS keyring, never in the config file.") + "\n")
		m.writeHint(&b)

	case stepValidate:
		b.WriteString(m.spinner.View() + " Sending ASK {} to " + m.result.URL + "…\n")

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("graphscope explore wd:Q42") + " to try it out.\n")
		b.WriteString("Run " + promptStyle.Render("graphscope serve") + " to start the API server.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

func (m initModel) writeHint(b *strings.Builder) {
	if m.validationErr != "" {
		b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))
}

// --- tea.Cmd factories ---

func validateEndpointCmd(result initResult) tea.Cmd {
	return func() tea.Msg {
		if err := endpointProbe(context.Background(), result.endpointConfig()); err != nil {
			return validationErrorMsg{err: err}
		}
		return validationSuccessMsg{}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// --- Config generation ---

type generatedConfig struct {
	Endpoint struct {
		URL       string `yaml:"url"`
		Type      string `yaml:"type"`
		Lang      string `yaml:"lang"`
		AuthToken string `yaml:"auth_token,omitempty"`
	} `yaml:"endpoint"`
	Networking struct {
		Listen string `yaml:"listen"`
	} `yaml:"networking"`
	Storage struct {
		Backend string `yaml:"backend"`
	} `yaml:"storage"`
}

// GenerateConfigYAML renders a minimal graphscope.yaml from the wizard
// result. A token is referenced by its keyring URI, never written inline.
func GenerateConfigYAML(result initResult) (string, error) {
	var gc generatedConfig
	gc.Endpoint.URL = result.URL
	gc.Endpoint.Type = result.Type
	gc.Endpoint.Lang = result.Lang
	if result.Token != "" {
		gc.Endpoint.AuthToken = secrets.TokenURI()
	}
	gc.Networking.Listen = defaultServerAddr
	gc.Storage.Backend = "sqlite"

	body, err := yaml.Marshal(gc)
	if err != nil {
		return "", sigilerr.Errorf(sigilerr.CodeConfigWriteFailure, "rendering config: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# graphscope configuration, generated by graphscope init\n")
	sb.WriteString("# Unset keys keep their defaults; see `graphscope doctor` for a health check.\n\n")
	sb.Write(body)
	return sb.String(), nil
}

// storeSecretAndWriteConfig saves the token to the OS keyring and writes the
// config YAML to the default config path.
//
// When forceOverwrite is false and the config file already exists, an error
// is returned asking the user to pass --force.
func storeSecretAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}

	if !forceOverwrite {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", sigilerr.Errorf(sigilerr.CodeConfigAlreadyExists,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	// A keyring entry left behind by a failed write below is overwritten on
	// the next run.
	if result.Token != "" {
		if err := store.Store(secrets.Service, secrets.TokenKey, result.Token); err != nil {
			return "", sigilerr.Errorf(sigilerr.CodeSecretStoreFailure, "storing endpoint token: %w", err)
		}
	}

	content, err := GenerateConfigYAML(result)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", sigilerr.Errorf(sigilerr.CodeConfigWriteFailure, "creating config directory %s: %w", dir, err)
	}
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		return "", sigilerr.Errorf(sigilerr.CodeConfigWriteFailure, "writing config to %s: %w", cfgPath, err)
	}

	return cfgPath, nil
}

// configPathForWrite returns the path the wizard writes to. Tests override it.
var configPathForWrite = config.DefaultConfigPath

// --- Cobra command ---

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard for graphscope",
		Long: `Run an interactive TUI wizard that walks you through:
  1. Choosing the endpoint type (wikidata or dbpedia)
  2. Confirming the endpoint URL
  3. Picking the label language
  4. Entering an optional bearer token

The endpoint is checked with an ASK {} query before the config is written.
A token is stored in the OS keyring and referenced via a keyring:// URI.`,
		RunE: runInit,
	}

	cmd.Flags().Bool("skip-probe", false, "write the config without querying the endpoint")
	cmd.Flags().Bool("force", false, "Overwrite existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"graphscope init requires an interactive terminal.\n"+
				"To configure graphscope non-interactively, edit ~/.config/graphscope/graphscope.yaml directly.")
		return sigilerr.New(sigilerr.CodeCLISetupFailure, "graphscope init: not an interactive terminal")
	}

	skipProbe, _ := cmd.Flags().GetBool("skip-probe")
	forceOverwrite, _ := cmd.Flags().GetBool("force")

	m := newInitModel(secretStoreFactory())
	m.skipProbe = skipProbe
	m.forceOverwrite = forceOverwrite

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return sigilerr.Errorf(sigilerr.CodeCLISetupFailure, "init wizard error: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return sigilerr.New(sigilerr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return sigilerr.Errorf(sigilerr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}
	if fm.step == stepDone {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", fm.configPath)
	}
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
