// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}
}

func prettyFlag() cli.Flag {
	return &cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output", Value: true}
}

func hostFlag() cli.Flag {
	return &cli.StringFlag{Name: "host", Usage: "Limit to one token host (rde.nims.go.jp or rde-material.nims.go.jp)"}
}

// setupCommand handles setup operations for configuration and the history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write config.toml and network.yaml, create data directories and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupInit,
			},
			{
				Name:   "show",
				Usage:  "Print resolved paths, network mode and AI providers",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.SetupShow,
			},
		},
	}
}

// authCommand handles bearer token operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Sign in and manage bearer tokens",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in through a headless browser and capture tokens for every host",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Sign-in name (defaults to login.username)"},
					&cli.BoolFlag{Name: "show-browser", Usage: "Run the browser with a visible window"},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show stored tokens per host",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "validate", Usage: "Check each token against /users/self"},
					jsonFlag(),
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "validate",
				Usage:  "Validate stored tokens against /users/self",
				Flags:  []cli.Flag{hostFlag()},
				Action: r.AuthValidate,
			},
			{
				Name:   "refresh",
				Usage:  "Exchange refresh tokens for new access tokens",
				Flags:  []cli.Flag{hostFlag()},
				Action: r.AuthRefresh,
			},
			{
				Name:  "import-curl",
				Usage: "Store the bearer token and cookies from a browser 'Copy as cURL' command",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "curl", Usage: "cURL command from browser DevTools (Copy as cURL)"},
					&cli.StringFlag{Name: "curl-file", Usage: "Path to a file containing the cURL command"},
					hostFlag(),
					&cli.BoolFlag{Name: "no-validate", Usage: "Store the token without checking it"},
				},
				Action: r.AuthImportCurl,
			},
			{
				Name:   "logout",
				Usage:  "Delete stored tokens and cookies",
				Flags:  []cli.Flag{hostFlag()},
				Action: r.AuthLogout,
			},
		},
	}
}

// datasetsCommand handles dataset operations
func datasetsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "datasets",
		Aliases: []string{"ds"},
		Usage:   "Dataset operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List datasets visible to the account",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of datasets to return", Value: 100},
					&cli.IntFlag{Name: "offset", Usage: "Number of datasets to skip"},
					&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Search words"},
					&cli.BoolFlag{Name: "save", Usage: "Save the response as the dataset list snapshot"},
					jsonFlag(),
				},
				Action: r.DatasetsList,
			},
			{
				Name:      "show",
				Usage:     "Show one dataset and cache its snapshot",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "cached", Usage: "Read the snapshot instead of calling the API"},
					jsonFlag(),
				},
				Action: r.DatasetsShow,
			},
			{
				Name:      "fetch",
				Usage:     "Fetch dataset details (all datasets when no ids are given) into the snapshot cache",
				Arguments: []cli.Argument{&cli.StringArgs{Name: "ids", Min: 0, Max: -1}},
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "workers", Usage: "Concurrent workers (max 10)"},
					&cli.FloatFlag{Name: "rate", Usage: "Requests per second across all workers"},
					&cli.BoolFlag{Name: "entries", Usage: "Also cache each dataset's data entries"},
					&cli.BoolFlag{Name: "force", Usage: "Refetch datasets that already have a snapshot"},
					&cli.BoolFlag{Name: "basics", Usage: "Also cache self, groups, instruments, templates and licenses"},
				},
				Action: r.DatasetsFetch,
			},
			{
				Name:  "export",
				Usage: "Export the dataset listing as csv, markdown, txt or json",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "csv, markdown, txt or json", Value: "csv"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory (defaults to <output_dir>/exports)"},
					&cli.StringFlag{Name: "title", Usage: "Title used for the file name and Markdown heading", Value: "RDE datasets"},
					&cli.BoolFlag{Name: "cached", Usage: "Export the saved dataset list snapshot"},
				},
				Action: r.DatasetsExport,
			},
			{
				Name:      "open",
				Usage:     "Open a dataset in the web browser",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.DatasetsOpen,
			},
		},
	}
}

// groupsCommand handles group and subgroup operations
func groupsCommand(r *Runner) *cli.Command {
	subgroupFlags := func(required bool) []cli.Flag {
		return []cli.Flag{
				&cli.StringFlag{Name: "name", Usage: "Subgroup name", Required: required},
				&cli.StringFlag{Name: "description", Usage: "Subgroup description"},
				&cli.StringFlag{Name: "parent", Usage: "Parent group id (defaults to the root group)"},
				&cli.StringSliceFlag{Name: "subject", Usage: "Research grant as GRANT_NUMBER:Title (repeatable)"},
				&cli.StringSliceFlag{Name: "fund", Usage: "Funding program number (repeatable)"},
				&cli.StringFlag{Name: "owner", Usage: "Owner user id (defaults to the signed-in user)"},
				&cli.StringSliceFlag{Name: "member", Usage: "Member as USER_ID:ROLE (repeatable)"},
		}
	}

	return &cli.Command{
		Name:  "groups",
		Usage: "Group and subgroup operations",
		Commands: []*cli.Command{
			{
				Name:   "root",
				Usage:  "Show the root group and its subgroups",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.GroupsRoot,
			},
			{
				Name:      "show",
				Usage:     "Show a group with its children and members",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.GroupsShow,
			},
			{
				Name:   "create",
				Usage:  "Create a subgroup",
				Flags:  subgroupFlags(true),
				Action: r.GroupsCreate,
			},
			{
				Name:      "update",
				Usage:     "Update a subgroup",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     subgroupFlags(true),
				Action:    r.GroupsUpdate,
			},
		},
	}
}

// samplesCommand handles material portal sample operations
func samplesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "samples",
		Usage: "Sample operations on the material portal",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the samples owned by a group",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Group id", Required: true},
					jsonFlag(),
				},
				Action: r.SamplesList,
			},
		},
	}
}

// entriesCommand handles data entry registration
func entriesCommand(r *Runner) *cli.Command {
	entryFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: "dataset", Aliases: []string{"d"}, Usage: "Dataset id", Required: true},
			&cli.StringFlag{Name: "name", Usage: "Data name", Required: true},
			&cli.StringFlag{Name: "description", Usage: "Data description"},
			&cli.StringFlag{Name: "experiment", Usage: "Experiment id"},
			&cli.StringFlag{Name: "sample-id", Usage: "Existing sample id"},
			&cli.StringSliceFlag{Name: "sample-name", Usage: "New sample name (repeatable)"},
			&cli.StringFlag{Name: "custom", Usage: "Custom invoice fields as a JSON object"},
			&cli.StringSliceFlag{Name: "upload", Usage: "Upload id from a previous upload (repeatable)"},
		}
	}
	fileArgs := func() []cli.Argument {
		return []cli.Argument{&cli.StringArgs{Name: "files", Min: 0, Max: -1}}
	}

	return &cli.Command{
		Name:  "entries",
		Usage: "Register data entries",
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "Upload files to a dataset and print their upload ids",
				Arguments: []cli.Argument{&cli.StringArgs{Name: "files", Min: 1, Max: -1}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dataset", Aliases: []string{"d"}, Usage: "Dataset id", Required: true},
				},
				Action: r.EntriesUpload,
			},
			{
				Name:      "validate",
				Usage:     "Upload files and check the entry without registering it",
				Arguments: fileArgs(),
				Flags:     entryFlags(),
				Action:    r.EntriesValidate,
			},
			{
				Name:      "create",
				Usage:     "Upload files and register a data entry",
				Arguments: fileArgs(),
				Flags:     entryFlags(),
				Action:    r.EntriesCreate,
			},
		},
	}
}

// filesCommand handles data entry files
func filesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "files",
		Usage: "Data entry file operations",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List the files of a data entry",
				Arguments: []cli.Argument{&cli.StringArg{Name: "data-id"}},
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.FilesList,
			},
			{
				Name:      "download",
				Usage:     "Download a file",
				Arguments: []cli.Argument{&cli.StringArg{Name: "file-id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output path"},
					&cli.StringFlag{Name: "name", Usage: "File name used under the data file cache"},
					&cli.StringFlag{Name: "grant", Usage: "Grant number used under the data file cache"},
					&cli.StringFlag{Name: "dataset-name", Usage: "Dataset name used under the data file cache"},
				},
				Action: r.FilesDownload,
			},
		},
	}
}

// apiCommand handles direct API calls
func apiCommand(r *Runner) *cli.Command {
	baseFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:  "base",
			Usage: "API host for relative paths: rde, user, material, instrument or entry",
			Value: "rde",
		}
	}

	return &cli.Command{
		Name:  "api",
		Usage: "Direct authenticated calls to the RDE APIs",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "GET a path or URL, prints raw JSON",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags:     []cli.Flag{baseFlag(), prettyFlag()},
				Action:    r.APIGet,
			},
			{
				Name:      "post",
				Usage:     "POST a JSON:API body",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags: []cli.Flag{
					baseFlag(),
					prettyFlag(),
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// aiCommand handles prompt dispatch
func aiCommand(r *Runner) *cli.Command {
	dispatchFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: "provider", Aliases: []string{"p"}, Usage: "openai, gemini or local_llm (defaults to ai.default_provider)"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Model (defaults to the provider's default_model)"},
			jsonFlag(),
		}
	}

	return &cli.Command{
		Name:  "ai",
		Usage: "AI prompt dispatch",
		Commands: []*cli.Command{
			{
				Name:  "providers",
				Usage: "List configured providers",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "test", Usage: "Send a short test prompt to each enabled provider"},
					jsonFlag(),
				},
				Action: r.AIProviders,
			},
			{
				Name:      "ask",
				Usage:     "Send a prompt",
				Arguments: []cli.Argument{&cli.StringArgs{Name: "prompt", Min: 0, Max: -1}},
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read the prompt from a file"},
				}, dispatchFlags()...),
				Action: r.AIAsk,
			},
			{
				Name:      "render",
				Usage:     "Render a prompt template, optionally with a dataset's context, and send it",
				Arguments: []cli.Argument{&cli.StringArg{Name: "template"}},
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "dataset", Aliases: []string{"d"}, Usage: "Dataset id whose fields fill the template"},
					&cli.StringSliceFlag{Name: "set", Usage: "Template value as key=value (repeatable)"},
					&cli.StringFlag{Name: "templates", Usage: "Prompt template file (defaults to <data_dir>/prompts.toml)"},
					&cli.BoolFlag{Name: "send", Usage: "Send the rendered prompt instead of printing it"},
					&cli.BoolFlag{Name: "list", Usage: "List available templates"},
				}, dispatchFlags()...),
				Action: r.AIRender,
			},
		},
	}
}

// historyCommand handles the local API call and AI result logs
func historyCommand(r *Runner) *cli.Command {
	listFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum number of records", Value: 20},
			&cli.DurationFlag{Name: "since", Usage: "Only records newer than this (e.g. 24h)"},
			&cli.BoolFlag{Name: "failed", Usage: "Only failed records"},
			jsonFlag(),
		}
	}

	return &cli.Command{
		Name:  "history",
		Usage: "Inspect the local API call and AI result logs",
		Commands: []*cli.Command{
			{
				Name:   "calls",
				Usage:  "Show recorded API calls",
				Flags:  append([]cli.Flag{hostFlag()}, listFlags()...),
				Action: r.HistoryCalls,
			},
			{
				Name:  "ai",
				Usage: "Show recorded AI results",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "provider", Aliases: []string{"p"}, Usage: "Only this provider"},
				}, listFlags()...),
				Action: r.HistoryAI,
			},
			{
				Name:  "clear",
				Usage: "Delete recorded history",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "calls", Usage: "Only clear API calls"},
					&cli.BoolFlag{Name: "ai", Usage: "Only clear AI results"},
				},
				Action: r.HistoryClear,
			},
		},
	}
}
