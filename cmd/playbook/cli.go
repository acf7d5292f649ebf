package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/generation"
	"github.com/hpungsan/playbook/internal/generator"
	"github.com/hpungsan/playbook/internal/mcp"
	"github.com/hpungsan/playbook/internal/ops"
	"github.com/hpungsan/playbook/internal/playbook"
	"github.com/hpungsan/playbook/internal/session"
	"github.com/hpungsan/playbook/internal/web"
)

// newCLIApp creates the CLI application with all commands.
// env may be nil when only help or version output is needed.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "playbook",
		Usage:   "Turn incident lessons into reusable playbooks",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(env),
			mcpCmd(env),
			newCmd(env),
			listCmd(env),
			libraryCmd(env),
			showCmd(env),
			approveCmd(env),
			publishCmd(env, true),
			publishCmd(env, false),
			deleteCmd(env),
			exportCmd(env),
			importCmd(env),
			industryCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd starts the web UI, and the generation endpoint when a model key is configured.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default from config)"},
			&cli.BoolFlag{Name: "secure-cookie", Usage: "Mark the session cookie Secure (behind HTTPS)"},
		},
		Action: func(c *cli.Context) error {
			cfg := env.cfg
			if c.IsSet("bind") {
				cfg.Bind = c.String("bind")
			}
			if c.IsSet("port") {
				cfg.Port = c.Int("port")
			}

			secret, err := env.sessionSecret()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			sessions, err := session.NewManager(secret,
				session.WithSecureCookie(c.Bool("secure-cookie")),
				session.WithLogger(env.logger))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			deps := web.Deps{
				Registry:  env.registry,
				Generator: env.generator(),
				Sessions:  sessions,
				Config:    cfg,
				Logger:    env.logger,
				Version:   Version,
			}

			if cfg.ModelAPIKey != "" {
				model, err := generator.NewGenAIModel(c.Context, cfg.ModelAPIKey, cfg.Model)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				deps.GenerationHandler = generator.NewHandler(model, cfg.AnonKey, env.logger)
			} else if cfg.GenerationURL == "" {
				env.logger.Warn("no model API key or generation_url configured; playbook generation will fail")
			}

			srv, err := web.NewServer(deps, cfg.Bind, cfg.Port)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(c.Context, srv, env.logger)
		},
	}
}

// mcpCmd serves the MCP tools over stdio.
func mcpCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio (default when stdin is piped)",
		Action: func(c *cli.Context) error {
			if unknown := mcp.ValidateDisabledTools(env.cfg.DisabledTools); len(unknown) > 0 {
				env.logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
			}
			return mcp.Run(env.registry, env.owner, env.cfg, Version, env.logger)
		},
	}
}

// newCmd generates and stores a playbook from an incident description.
func newCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "new",
		Usage: "Generate a playbook from an incident",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true, Usage: "Incident title"},
			&cli.StringFlag{Name: "summary", Aliases: []string{"s"}, Usage: "What happened (reads stdin when omitted)"},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Required: true, Usage: "Incident category"},
			&cli.StringFlag{Name: "industry", Aliases: []string{"i"}, Usage: "Industry (default: selected industry)"},
			&cli.StringFlag{Name: "root-cause", Usage: "Known root cause"},
			&cli.StringFlag{Name: "impact", Usage: "Business impact"},
		},
		Action: func(c *cli.Context) error {
			s, err := env.ownerStore(c.Context)
			if err != nil {
				return outputError(err)
			}

			summary := c.String("summary")
			if summary == "" && stdinHasData(c.App.Reader) {
				summary, err = readAll(c.App.Reader)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
			}

			industry := strings.TrimSpace(c.String("industry"))
			if industry == "" {
				industry = s.SelectedIndustry()
			}
			if industry == "" {
				return outputError(errors.NewInvalidRequest("industry is required (pass --industry or run 'playbook industry <name>')"))
			}
			category := strings.TrimSpace(c.String("category"))
			if category == "" {
				return outputError(errors.NewInvalidRequest("category is required"))
			}

			req := generation.Request{
				Title:     strings.TrimSpace(c.String("title")),
				Category:  category,
				Summary:   strings.TrimSpace(summary),
				RootCause: strings.TrimSpace(c.String("root-cause")),
				Impact:    strings.TrimSpace(c.String("impact")),
				Industry:  industry,
			}
			if err := playbook.ValidateIncident(req.Title, req.Summary); err != nil {
				return outputError(err)
			}

			res, err := env.generator().Generate(c.Context, req)
			if err != nil {
				return outputError(err)
			}
			entry, err := generation.NewEntry(req, res, time.Now())
			if err != nil {
				return outputError(err)
			}
			created, err := s.Create(c.Context, entry)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, created)
		},
	}
}

// listCmd lists the owner's entries.
func listCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List your entries",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Value: ops.MyFilterAll, Usage: "All|Published|Unpublished or a status"},
		},
		Action: func(c *cli.Context) error {
			s, err := env.ownerStore(c.Context)
			if err != nil {
				return outputError(err)
			}
			entries := ops.FilterMyEntries(s.Entries(), c.String("filter"))
			return outputJSON(c, map[string]any{"entries": entries, "count": len(entries)})
		},
	}
}

// libraryCmd lists published entries from every owner.
func libraryCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "library",
		Usage: "Browse the published library",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Search title, summary and tags"},
			&cli.StringFlag{Name: "industry", Aliases: []string{"i"}, Usage: "Filter by industry"},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Filter by category"},
		},
		Action: func(c *cli.Context) error {
			published, err := env.registry.Repository().ListPublished(c.Context)
			if err != nil {
				return outputError(err)
			}
			entries := ops.FilterLibrary(published, ops.LibraryFilter{
				Query:    c.String("query"),
				Industry: c.String("industry"),
				Category: c.String("category"),
			})
			return outputJSON(c, map[string]any{"entries": entries, "count": len(entries)})
		},
	}
}

// showCmd renders one entry as Markdown.
func showCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show an entry",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "raw", Usage: "Print the Markdown without terminal styling"},
			&cli.BoolFlag{Name: "json", Usage: "Print the entry as JSON"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}
			e, err := env.findEntry(c, id)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(c, e)
			}

			text := playbook.FormatText(e)
			if c.Bool("raw") {
				_, err := io.WriteString(c.App.Writer, text)
				return err
			}

			renderer, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(80),
			)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			out, err := renderer.Render(text)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			_, err = io.WriteString(c.App.Writer, out)
			return err
		},
	}
}

// approveCmd marks an entry Approved.
func approveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "approve",
		Usage:     "Mark an entry as Approved",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}
			s, err := env.ownerStore(c.Context)
			if err != nil {
				return outputError(err)
			}
			e, err := s.Approve(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, e)
		},
	}
}

// publishCmd creates the publish or unpublish command.
func publishCmd(env *appEnv, publish bool) *cli.Command {
	name, usage := "publish", "Share an entry in the library"
	if !publish {
		name, usage = "unpublish", "Remove an entry from the library"
	}
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}
			s, err := env.ownerStore(c.Context)
			if err != nil {
				return outputError(err)
			}
			e, err := s.TogglePublish(c.Context, id, publish)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, e)
		},
	}
}

// deleteCmd permanently removes an entry.
func deleteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete an entry",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}
			s, err := env.ownerStore(c.Context)
			if err != nil {
				return outputError(err)
			}
			if err := s.Delete(c.Context, id); err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{"id": id, "deleted": true})
		},
	}
}

// exportCmd writes the owner's entries to a JSONL file.
func exportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export your entries to JSONL",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output path (default: <base>/exports/<industry|all>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "industry", Aliases: []string{"i"}, Usage: "Only export this industry"},
		},
		Action: func(c *cli.Context) error {
			s, err := env.ownerStore(c.Context)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Export(c.Context, env.owner, s.Entries(), env.cfg, env.baseDir, ops.ExportInput{
				Path:     c.String("path"),
				Industry: c.String("industry"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// importCmd reads a JSONL export into the owner's entries.
func importCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import entries from a JSONL export",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: string(ops.ImportModeError), Usage: "Collision mode: error|replace|rename"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, env.registry.Repository(), env.owner, env.cfg, env.baseDir, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			if err := env.registry.Reload(c.Context, env.owner); err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// industryCmd shows, sets, or clears the selected industry.
func industryCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "industry",
		Usage:     "Show or set the selected industry",
		ArgsUsage: "[name]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear", Usage: "Clear the selected industry"},
		},
		Action: func(c *cli.Context) error {
			s, err := env.ownerStore(c.Context)
			if err != nil {
				return outputError(err)
			}

			switch {
			case c.Bool("clear"):
				if err := s.SetSelectedIndustry(""); err != nil {
					return outputError(err)
				}
			case c.NArg() > 0:
				industry := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
				if industry == "" {
					return outputError(errors.NewInvalidRequest("industry name is required"))
				}
				if err := s.SetSelectedIndustry(industry); err != nil {
					return outputError(err)
				}
			}

			return outputJSON(c, map[string]any{
				"industry": s.SelectedIndustry(),
				"known":    playbook.IsKnownIndustry(s.SelectedIndustry()),
			})
		},
	}
}

// Helper functions

// findEntry resolves id against the owner's entries, the suggestions, and the
// published library.
func (e *appEnv) findEntry(c *cli.Context, id string) (playbook.Entry, error) {
	s, err := e.ownerStore(c.Context)
	if err != nil {
		return playbook.Entry{}, err
	}
	if entry, ok := s.Get(id); ok {
		return entry, nil
	}
	if entry, ok := ops.Suggestion(id); ok {
		return entry, nil
	}
	published, err := e.registry.Repository().ListPublished(c.Context)
	if err != nil {
		return playbook.Entry{}, err
	}
	for _, entry := range published {
		if entry.ID == id {
			return entry, nil
		}
	}
	return playbook.Entry{}, errors.NewNotFound(id)
}

func requireID(c *cli.Context) (string, error) {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	return id, nil
}

// outputJSON marshals result to the app's writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err as {"error":{code,message,status}} and exits 1.
func outputError(err error) error {
	pErr := errors.As(err)
	data, _ := json.Marshal(map[string]any{
		"error": map[string]any{
			"code":    pErr.Code,
			"message": pErr.Message,
			"status":  pErr.Status,
		},
	})
	return cli.Exit(string(data), 1)
}

// stdinHasData returns true if r is a pipe or file rather than a terminal.
func stdinHasData(r io.Reader) bool {
	f, ok := r.(interface{ Stat() (os.FileInfo, error) })
	if !ok {
		return r != nil
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readAll reads r, bounded to maxStdin bytes.
func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxStdin))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// maxStdin bounds piped summaries.
const maxStdin = 1 << 20
