package cli

import (
	"context"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/launchbynttdata/metagen/internal/ado"
	"github.com/launchbynttdata/metagen/internal/artifact"
	"github.com/launchbynttdata/metagen/internal/config"
	"github.com/launchbynttdata/metagen/internal/domain/buildsource"
	"github.com/launchbynttdata/metagen/internal/logging"
	"github.com/launchbynttdata/metagen/internal/render"
	"github.com/launchbynttdata/metagen/internal/services/generate"
	"github.com/launchbynttdata/metagen/internal/vcs"
	"github.com/launchbynttdata/metagen/internal/version"
)

const (
	envLogLevel       = "METAGEN_LOG_LEVEL"
	envConfig         = "METAGEN_CONFIG"
	envSource         = "METAGEN_SOURCE"
	envLayout         = "METAGEN_LAYOUT"
	envTemplate       = "METAGEN_TEMPLATE"
	envDestination    = "METAGEN_DESTINATION"
	envTagPattern     = "METAGEN_TAG_PATTERN"
	envDefaultVersion = "METAGEN_DEFAULT_VERSION"
	envBuildSource    = "METAGEN_BUILD_SOURCE"
	envBuildNumber    = "METAGEN_BUILD_NUMBER"
	envProjectName    = "METAGEN_PROJECT_NAME"
	envPackage        = "METAGEN_PACKAGE"
	envUTC            = "METAGEN_UTC"
	envCommit         = "METAGEN_COMMIT_SHA"

	envOrgURL  = "METAGEN_ADO_ORG_URL"
	envProject = "METAGEN_ADO_PROJECT"
	envRepo    = "METAGEN_ADO_REPO"
	envToken   = "METAGEN_ADO_TOKEN"

	// envSourceDateEpoch follows the reproducible-builds convention for pinning the clock.
	envSourceDateEpoch = "SOURCE_DATE_EPOCH"
)

// Azure Pipelines predefined variables used as defaults for the ado source.
const (
	pipelineCollectionURI = "SYSTEM_COLLECTIONURI"
	pipelineTeamProject   = "SYSTEM_TEAMPROJECT"
	pipelineRepository    = "BUILD_REPOSITORY_NAME"
	pipelineAccessToken   = "SYSTEM_ACCESSTOKEN"
	pipelineSourceVersion = "BUILD_SOURCEVERSION"
)

const (
	sourceGit = "git"
	sourceADO = "ado"

	requiredSettingFormat = "%s is required (set %s or --%s)"
)

// Execute runs the CLI root command with the provided context. When args is
// empty the process arguments are used.
func Execute(ctx context.Context, args ...string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cmd := newRootCommand()
	if len(args) > 0 {
		cmd.SetArgs(args)
	}
	return cmd.ExecuteContext(ctx)
}

type rootFlagSet struct {
	logLevel   *stringFlag
	configPath *stringFlag

	source      *stringFlag
	orgURL      *stringFlag
	project     *stringFlag
	repo        *stringFlag
	token       *stringFlag
	commit      *stringFlag
	tagPatterns *stringSliceFlag

	layout         *stringFlag
	template       *stringFlag
	destination    *stringFlag
	defaultVersion *stringFlag
	buildSource    *stringFlag
	buildNumber    *uint64Flag
	projectName    *stringFlag
	pkg            *stringFlag
	utc            *boolFlag
}

type runtimeConfig struct {
	resolver config.Resolver
	logger   *zap.Logger
	workDir  string
	file     config.ProjectFile
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "metagen",
		Short:         "Generate version and build metadata constants from git state",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version.Version
	cmd.SetVersionTemplate("metagen {{.Version}}\n")

	flags := bindRootFlags(cmd)
	cmd.AddCommand(
		newGenerateCommand(flags),
		newDescribeCommand(flags),
		newInspectCommand(flags),
		newVersionCommand(),
	)

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build metadata",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "metagen %s\n", version.Summary()); err != nil {
				return fmt.Errorf("writing version info: %w", err)
			}
			return nil
		},
	}
}

func bindRootFlags(cmd *cobra.Command) *rootFlagSet {
	fs := cmd.PersistentFlags()
	return &rootFlagSet{
		logLevel:   bindStringFlag(fs, "log-level", "log-level", "", envLogLevel, logging.LevelTerse, "Log verbosity (quiet, terse or verbose)"),
		configPath: bindStringFlag(fs, "config", "config", "c", envConfig, "", "Project file relative to the work directory (default: metagen.yaml, metagen.yml or metagen.json)"),

		source:      bindStringFlag(fs, "source", "source", "", envSource, sourceGit, "Version-control backend (git or ado)"),
		orgURL:      bindStringFlag(fs, "ado-org-url", "ado-org-url", "", envOrgURL, "", "Azure DevOps organization URL (default: $"+pipelineCollectionURI+")"),
		project:     bindStringFlag(fs, "ado-project", "ado-project", "", envProject, "", "Azure DevOps project name (default: $"+pipelineTeamProject+")"),
		repo:        bindStringFlag(fs, "ado-repo", "ado-repo", "", envRepo, "", "Azure DevOps repository name (default: $"+pipelineRepository+")"),
		token:       bindSecretFlag(fs, "ado-token", "ado-token", "", envToken, "", "Azure DevOps personal access token (default: $"+pipelineAccessToken+")"),
		commit:      bindStringFlag(fs, "commit-sha", "commit-sha", "", envCommit, "", "Build commit for the ado source (default: $"+pipelineSourceVersion+")"),
		tagPatterns: bindStringSliceFlag(fs, "tag-pattern", "tag-pattern", "t", envTagPattern, []string{vcs.DefaultTagPattern}, "Glob patterns selecting version tags"),

		layout:         bindStringFlag(fs, "layout", "layout", "l", envLayout, string(render.LayoutC), "Built-in artifact layout (c or go)"),
		template:       bindStringFlag(fs, "template", "template", "", envTemplate, "", "Template file overriding the built-in layout, relative to the work directory"),
		destination:    bindStringFlag(fs, "destination", "destination", "o", envDestination, "", "Artifact path relative to the work directory (default: meta.h or meta.go)"),
		defaultVersion: bindStringFlag(fs, "default-version", "default-version", "", envDefaultVersion, "", "Version used when no tag matches (default: 0.0.0)"),
		buildSource:    bindStringFlag(fs, "build-source", "build-source", "", envBuildSource, string(buildsource.Default()), "Origin of VERSION_BUILD (commits, tag or counter)"),
		buildNumber:    bindUint64Flag(fs, "build-number", "build-number", "", envBuildNumber, 0, "Build number used with --build-source=counter"),
		projectName:    bindStringFlag(fs, "project-name", "project-name", "p", envProjectName, "", "Project name prefixing C constants (AppMeta -> APPMETA_VERSION_STR)"),
		pkg:            bindStringFlag(fs, "package", "package", "", envPackage, render.DefaultPackage, "Go package name for the go layout"),
		utc:            bindBoolFlag(fs, "utc", "utc", "", envUTC, false, "Compute the build date in UTC instead of local time"),
	}
}

func newGenerateCommand(flags *rootFlagSet) *cobra.Command {
	return &cobra.Command{
		Use:   "generate [work-dir]",
		Short: "Write the metadata artifact for the repository in work-dir",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runtime, cleanup, err := buildRuntime(flags, args)
			if err != nil {
				return err
			}
			defer cleanup()

			svc, err := buildService(ctx, runtime, flags)
			if err != nil {
				return err
			}

			writeCfg, err := resolveWriteConfig(runtime, flags)
			if err != nil {
				return err
			}

			result, err := svc.Generate(ctx, writeCfg)
			if err != nil {
				return err
			}

			if _, err := fmt.Fprintln(cmd.OutOrStdout(), result.Artifact.Path); err != nil {
				return fmt.Errorf("writing generate result: %w", err)
			}
			return nil
		},
	}
}

func newDescribeCommand(flags *rootFlagSet) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [work-dir]",
		Short: "Print the computed metadata without writing the artifact",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runtime, cleanup, err := buildRuntime(flags, args)
			if err != nil {
				return err
			}
			defer cleanup()

			svc, err := buildService(ctx, runtime, flags)
			if err != nil {
				return err
			}

			cfg, err := resolveConfig(runtime, flags)
			if err != nil {
				return err
			}

			result, err := svc.Describe(ctx, cfg)
			if err != nil {
				return err
			}

			renderDescribeTable(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func newInspectCommand(flags *rootFlagSet) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "Decode a generated artifact and print its constants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := config.NewResolver(zap.NewNop())
			path := args[0]

			layoutValue := flags.layout.Value(resolver)
			if !flags.layout.base.changed() && os.Getenv(envLayout) == "" && strings.EqualFold(filepath.Ext(path), ".go") {
				layoutValue = string(render.LayoutGo)
			}
			layout, err := render.ParseLayout(layoutValue)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(filepath.Clean(path))
			if err != nil {
				return fmt.Errorf("reading artifact: %w", err)
			}

			desc, err := render.Decode(layout, string(data))
			if err != nil {
				return fmt.Errorf("decoding %s: %w", path, err)
			}

			renderDescriptorTable(cmd.OutOrStdout(), desc)
			return nil
		},
	}
}

func buildRuntime(flags *rootFlagSet, args []string) (runtimeConfig, func(), error) {
	nopResolver := config.NewResolver(zap.NewNop())
	logLevel := flags.logLevel.Value(nopResolver)

	logger, err := logging.New(logLevel)
	if err != nil {
		return runtimeConfig{}, nil, fmt.Errorf("configuring logger: %w", err)
	}
	cleanup := func() {
		_ = logger.Sync()
	}

	workDir := "."
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		workDir = strings.TrimSpace(args[0])
	}
	info, err := os.Stat(workDir)
	if err != nil {
		cleanup()
		return runtimeConfig{}, nil, fmt.Errorf("work directory %s: %w", workDir, err)
	}
	if !info.IsDir() {
		cleanup()
		return runtimeConfig{}, nil, fmt.Errorf("work directory %s is not a directory", workDir)
	}

	loaded, err := config.LoadDotEnv(workDir)
	if err != nil {
		cleanup()
		return runtimeConfig{}, nil, err
	}
	if loaded {
		logger.Debug("loaded environment file", zap.String("path", filepath.Join(workDir, config.DotEnvFilename)))
	}

	resolver := config.NewResolver(logger)

	configPath := flags.configPath.Value(resolver)
	if configPath != "" {
		configPath = inWorkDir(workDir, configPath)
	}
	file, filePath, err := config.LoadProjectFile(workDir, configPath)
	if err != nil {
		cleanup()
		return runtimeConfig{}, nil, err
	}
	if filePath != "" {
		logger.Debug("loaded project file", zap.String("path", filePath))
	}

	return runtimeConfig{
		resolver: resolver,
		logger:   logger,
		workDir:  workDir,
		file:     file,
	}, cleanup, nil
}

func buildService(ctx context.Context, runtime runtimeConfig, flags *rootFlagSet) (generate.Service, error) {
	source, err := buildSource(ctx, runtime, flags)
	if err != nil {
		return generate.Service{}, err
	}

	clock, err := buildClock(runtime, flags)
	if err != nil {
		return generate.Service{}, err
	}

	return generate.NewService(source, artifact.NewWriter(runtime.logger), clock, runtime.logger), nil
}

func buildSource(ctx context.Context, runtime runtimeConfig, flags *rootFlagSet) (vcs.Source, error) {
	resolver := runtime.resolver
	kind := strings.ToLower(flags.source.ValueOr(resolver, runtime.file.Source))

	switch kind {
	case sourceGit:
		return vcs.NewGitSource(runtime.workDir, vcs.ExecRunner, runtime.logger), nil
	case sourceADO:
	default:
		return nil, fmt.Errorf("invalid source %q", kind)
	}

	orgURL := flags.orgURL.ValueOr(resolver, os.Getenv(pipelineCollectionURI))
	if orgURL == "" {
		return nil, fmt.Errorf(requiredSettingFormat, "ado-org-url", envOrgURL, "ado-org-url")
	}
	project := flags.project.ValueOr(resolver, os.Getenv(pipelineTeamProject))
	if project == "" {
		return nil, fmt.Errorf(requiredSettingFormat, "ado-project", envProject, "ado-project")
	}
	repo := flags.repo.ValueOr(resolver, os.Getenv(pipelineRepository))
	if repo == "" {
		return nil, fmt.Errorf(requiredSettingFormat, "ado-repo", envRepo, "ado-repo")
	}
	accessToken := flags.token.ValueOr(resolver, os.Getenv(pipelineAccessToken))
	if accessToken == "" {
		return nil, fmt.Errorf(requiredSettingFormat, "ado-token", envToken, "ado-token")
	}
	commit := flags.commit.ValueOr(resolver, os.Getenv(pipelineSourceVersion))
	if commit == "" {
		return nil, fmt.Errorf(requiredSettingFormat, "commit-sha", envCommit, "commit-sha")
	}

	client, err := ado.NewClient(ctx, ado.Config{
		OrganizationURL: orgURL,
		Project:         project,
		Repository:      repo,
		Token:           accessToken,
	})
	if err != nil {
		return nil, err
	}

	runtime.logger.Debug("using azure devops source",
		zap.String("organization", orgURL),
		zap.String("project", project),
		zap.String("repo", repo),
		zap.String("commit", commit),
	)
	return vcs.NewADOSource(client, commit, runtime.logger), nil
}

func buildClock(runtime runtimeConfig, flags *rootFlagSet) (func() time.Time, error) {
	utc, err := flags.utc.ValueOr(runtime.resolver, runtime.file.UTC)
	if err != nil {
		return nil, err
	}

	if raw, ok := os.LookupEnv(envSourceDateEpoch); ok && strings.TrimSpace(raw) != "" {
		seconds, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", envSourceDateEpoch, raw, err)
		}
		pinned := time.Unix(seconds, 0).UTC()
		runtime.logger.Debug("clock pinned", zap.Time("now", pinned))
		return func() time.Time { return pinned }, nil
	}

	if utc {
		return func() time.Time { return time.Now().UTC() }, nil
	}
	return time.Now, nil
}

func resolveConfig(runtime runtimeConfig, flags *rootFlagSet) (generate.Config, error) {
	resolver := runtime.resolver
	file := runtime.file

	source, err := buildsource.Parse(strings.ToLower(flags.buildSource.ValueOr(resolver, file.BuildSource)))
	if err != nil {
		return generate.Config{}, err
	}

	number, hasNumber, err := flags.buildNumber.Value(resolver)
	if err != nil {
		return generate.Config{}, err
	}
	if source == buildsource.SourceCounter && !hasNumber {
		return generate.Config{}, fmt.Errorf(requiredSettingFormat, "build-number", envBuildNumber, "build-number")
	}

	return generate.Config{
		TagPatterns:    flags.tagPatterns.ValueOr(resolver, file.TagPatterns),
		DefaultVersion: flags.defaultVersion.ValueOr(resolver, file.DefaultVersion),
		BuildSource:    source,
		BuildNumber:    number,
		HasBuildNumber: hasNumber,
	}, nil
}

func resolveWriteConfig(runtime runtimeConfig, flags *rootFlagSet) (generate.WriteConfig, error) {
	cfg, err := resolveConfig(runtime, flags)
	if err != nil {
		return generate.WriteConfig{}, err
	}

	resolver := runtime.resolver
	file := runtime.file

	layout, err := render.ParseLayout(flags.layout.ValueOr(resolver, file.Layout))
	if err != nil {
		return generate.WriteConfig{}, err
	}

	templatePath := flags.template.ValueOr(resolver, file.Template)
	if templatePath != "" {
		templatePath = inWorkDir(runtime.workDir, templatePath)
	}
	tmpl, err := render.LoadTemplate(templatePath, layout)
	if err != nil {
		return generate.WriteConfig{}, err
	}

	pkg := flags.pkg.ValueOr(resolver, file.Package)
	if !token.IsIdentifier(pkg) {
		return generate.WriteConfig{}, fmt.Errorf("invalid package name %q: must be a Go identifier", pkg)
	}

	destination := flags.destination.ValueOr(resolver, file.Destination)
	if destination == "" {
		destination = layout.DefaultDestination()
	}

	return generate.WriteConfig{
		Config:   cfg,
		Template: tmpl,
		Render: render.Options{
			ProjectName: flags.projectName.ValueOr(resolver, file.ProjectName),
			Package:     pkg,
		},
		Destination: inWorkDir(runtime.workDir, destination),
	}, nil
}

func inWorkDir(workDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(workDir, path)
}
