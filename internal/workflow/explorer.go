package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"repoinsight/config"
	"repoinsight/internal/jsonutil"
	"repoinsight/internal/models"
)

// executableNameHints mark service names that are likely runnable even when
// no manifest was found, so the entry-point fetch is still worth trying.
var executableNameHints = []string{".api", "app", "processor", "client", "web"}

// structureStage discovers services and their relationships. Every
// reasoning call has a parse-failure fallback; every fetch tolerates
// absence. The stage itself fails only on unexpected faults.
type structureStage struct {
	remote   RemoteDataAccess
	reasoner Reasoner
	cfg      config.AnalysisConfig

	// soft records that remote access or the reasoning service failed
	// outright during this run; the stage still produces a (partial)
	// result, the flag is surfaced for observability.
	soft bool
}

func newStructureStage(remote RemoteDataAccess, reasoner Reasoner, cfg config.AnalysisConfig) *structureStage {
	return &structureStage{remote: remote, reasoner: reasoner, cfg: cfg}
}

func emptyStructureResult() *models.StructureResult {
	return &models.StructureResult{
		Services:    []models.ServiceDescriptor{},
		Connections: []models.ConnectionEdge{},
		TechStack:   []string{},
	}
}

// Explore runs the discovery sequence: README, directory walk, manifest
// search, service identification, per-service analysis, repository metadata
// probes, architecture analysis. The bool reports whether the stage soft-
// failed along the way.
func (s *structureStage) Explore(ctx context.Context, ref models.RepoRef) (*models.StructureResult, bool, error) {
	logrus.Infof("Exploring repository: %s", ref)

	readme := s.fetchReadme(ctx, ref)
	directories := s.directoryNames(ctx, ref)
	logrus.Infof("Found %d directories", len(directories))

	manifests := s.searchManifests(ctx, ref)
	logrus.Infof("Found %d project files", len(manifests))

	candidates := s.identifyServices(ctx, readme, directories, manifests)
	logrus.Infof("Identified %d candidate services", len(candidates))

	services := make([]models.ServiceDescriptor, 0, len(candidates))
	for _, name := range candidates {
		services = append(services, s.describeService(ctx, ref, name))
	}

	metadata := s.repositoryMetadata(ctx, ref)

	result := s.analyzeArchitecture(ctx, readme, services)
	result.Metadata = metadata
	result.Services = services

	logrus.Infof("Repository exploration complete: %d services, %d connections",
		len(result.Services), len(result.Connections))
	return result, s.soft, nil
}

// fetchReadme returns the top-level README or an empty string; absence is
// tolerated.
func (s *structureStage) fetchReadme(ctx context.Context, ref models.RepoRef) string {
	readme, err := s.remote.FileContents(ctx, ref.Owner, ref.Name, "README.md", false)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.soft = true
		}
		logrus.Info("No README found")
		return ""
	}
	logrus.Infof("README fetched (%d chars)", len(readme))
	return readme
}

// directoryNames lists the primary source directory, falling back to the
// repository root, and walks subdirectories breadth-first down to the
// configured depth. The result is a flat, order-preserving name list.
func (s *structureStage) directoryNames(ctx context.Context, ref models.RepoRef) []string {
	root := s.cfg.SrcRoot
	entries, err := s.remote.DirectoryListing(ctx, ref.Owner, ref.Name, root, false)
	if err != nil && root != "" {
		logrus.Infof("No %s/ directory, trying root", root)
		root = ""
		entries, err = s.remote.DirectoryListing(ctx, ref.Owner, ref.Name, root, false)
	}
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.soft = true
		}
		return nil
	}

	type level struct {
		entries []models.DirEntry
		depth   int
	}
	var names []string
	queue := []level{{entries: entries, depth: 1}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, entry := range current.entries {
			if !entry.IsDir() {
				continue
			}
			names = append(names, entry.Name)
			if current.depth >= s.cfg.MaxDirectoryDepth {
				continue
			}
			children, err := s.remote.DirectoryListing(ctx, ref.Owner, ref.Name, entry.Path, true)
			if err != nil {
				continue
			}
			queue = append(queue, level{entries: children, depth: current.depth + 1})
		}
	}
	return names
}

// searchManifests looks for project manifest files across the repository,
// bounded to the configured page size.
func (s *structureStage) searchManifests(ctx context.Context, ref models.RepoRef) []string {
	query := "extension:" + s.cfg.ManifestExtension
	paths, err := s.remote.SearchCode(ctx, ref.Owner, ref.Name, query, s.cfg.SearchPageSize)
	if err != nil {
		s.soft = true
		return nil
	}
	return paths
}

// identifyServices asks the reasoning service for candidate service names.
// A response without a parseable JSON array yields no candidates; the stage
// continues with an empty service list rather than failing.
func (s *structureStage) identifyServices(ctx context.Context, readme string, directories, manifests []string) []string {
	prompt := fmt.Sprintf(`You are analyzing a repository to identify services/applications.

README Content (first %d chars):
%s

Directories found:
%s

Project files found:
%s

Based on this information, identify ALL services/applications in this repository.
Look for:
- API services (e.g., Catalog.API, Basket.API)
- Web applications (e.g., WebApp, ClientApp)
- Background services
- Infrastructure/shared libraries (e.g., EventBus, ServiceDefaults)

Return ONLY a JSON array of service names (directory/folder names):
["Service1", "Service2", "Service3"]`,
		s.cfg.ReadmeTruncate,
		truncate(readme, s.cfg.ReadmeTruncate),
		compactList(directories, 20),
		compactList(manifests, 20))

	response, err := s.reasoner.Complete(ctx, "You are a repository analysis expert. Return only valid JSON.", prompt)
	if err != nil {
		logrus.Warnf("Service identification call failed: %v", err)
		s.soft = true
		return nil
	}
	var names []string
	if err := jsonutil.ExtractArray(response, &names); err != nil {
		logrus.Warnf("Service identification returned no parseable JSON array; continuing with no services")
		return nil
	}
	return dedupe(names)
}

// describeService fetches the service's manifest and, when the service looks
// executable, its entry point, then asks the reasoning service for metadata.
// Every candidate name yields exactly one descriptor: parse failure
// substitutes a minimal one.
func (s *structureStage) describeService(ctx context.Context, ref models.RepoRef, name string) models.ServiceDescriptor {
	manifestPath := path.Join(s.cfg.SrcRoot, name, name+"."+s.cfg.ManifestExtension)
	manifest, err := s.remote.FileContents(ctx, ref.Owner, ref.Name, manifestPath, true)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		logrus.Debugf("Manifest fetch for %s failed: %v", name, err)
	}

	entryPoint := ""
	if manifest != "" || looksExecutable(name) {
		entryPath := path.Join(s.cfg.SrcRoot, name, s.cfg.EntryPointFile)
		entryPoint, _ = s.remote.FileContents(ctx, ref.Owner, ref.Name, entryPath, true)
	}

	prompt := fmt.Sprintf(`Analyze this service and extract information:

Service Name: %s

Project File:
%s

Entry Point:
%s

Extract and return JSON with:
{
  "name": "service name",
  "description": "what this service does (concrete, specific)",
  "technologies": ["tech1", "tech2"],
  "dependencies": ["dependency1", "dependency2"],
  "type": "api|webapp|library|background-service|unknown",
  "port": "port number if found or null"
}`,
		name,
		orNotAvailable(truncate(manifest, s.cfg.FileTruncate)),
		orNotAvailable(truncate(entryPoint, s.cfg.FileTruncate)))

	response, err := s.reasoner.Complete(ctx, "You are a code analysis expert. Return only valid JSON.", prompt)
	if err != nil {
		logrus.Warnf("Service analysis call for %s failed: %v", name, err)
		s.soft = true
		return minimalDescriptor(name)
	}

	var raw struct {
		Description  string   `json:"description"`
		Technologies []string `json:"technologies"`
		Dependencies []string `json:"dependencies"`
		Kind         string   `json:"type"`
		Port         any      `json:"port"`
	}
	if err := jsonutil.ExtractObject(response, &raw); err != nil {
		logrus.Warnf("Service analysis for %s returned no parseable JSON; using minimal descriptor", name)
		return minimalDescriptor(name)
	}

	desc := models.ServiceDescriptor{
		Name:         name,
		Description:  raw.Description,
		Technologies: orEmpty(raw.Technologies),
		Dependencies: orEmpty(raw.Dependencies),
		Kind:         normalizeKind(raw.Kind),
		Port:         coercePort(raw.Port),
	}
	return desc
}

// repositoryMetadata probes well-known files and directories. All probes are
// silent: absence is data, not an error.
func (s *structureStage) repositoryMetadata(ctx context.Context, ref models.RepoRef) models.RepoMetadata {
	var md models.RepoMetadata
	md.License = s.probeFile(ctx, ref, "LICENSE", "LICENSE.md", "LICENSE.txt")
	md.Contributing = s.probeFile(ctx, ref, "CONTRIBUTING.md", "CONTRIBUTING", ".github/CONTRIBUTING.md")
	md.CodeOfConduct = s.probeFile(ctx, ref, "CODE_OF_CONDUCT.md", ".github/CODE_OF_CONDUCT.md")
	md.Security = s.probeFile(ctx, ref, "SECURITY.md", ".github/SECURITY.md")
	md.Changelog = s.probeFile(ctx, ref, "CHANGELOG.md", "CHANGELOG", "HISTORY.md")

	md.CIWorkflows = []models.WorkflowFile{}
	if entries, err := s.remote.DirectoryListing(ctx, ref.Owner, ref.Name, ".github/workflows", true); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				md.CIWorkflows = append(md.CIWorkflows, models.WorkflowFile{Name: entry.Name, Path: entry.Path})
			}
		}
	}

	md.Docker.Dockerfile = s.fileExists(ctx, ref, "Dockerfile")
	md.Docker.DockerCompose = s.fileExists(ctx, ref, "docker-compose.yml")
	md.Documentation.HasDocsFolder = s.dirExists(ctx, ref, "docs")
	for _, dir := range []string{"tests", "test", "Tests", "Test"} {
		if s.dirExists(ctx, ref, dir) {
			md.Testing.HasTestDirectory = true
			break
		}
	}
	return md
}

// analyzeArchitecture asks the reasoning service for the overview,
// connections, patterns and tech stack given a compact service summary.
// Parse failure keeps the discovered services and returns empty values for
// everything else: partial success beats total failure.
func (s *structureStage) analyzeArchitecture(ctx context.Context, readme string, services []models.ServiceDescriptor) *models.StructureResult {
	result := emptyStructureResult()
	if s.reasoner == nil {
		return result
	}

	prompt := fmt.Sprintf(`Analyze this repository's architecture:

README:
%s

Services:
%s

Provide JSON with:
{
  "overview": "brief description of the repository",
  "connections": [
    {"from": "ServiceA", "to": "ServiceB", "method": "REST|gRPC|Events"}
  ],
  "patterns": {
    "shared_technologies": ["tech1", "tech2"],
    "communication_styles": ["REST", "Events"],
    "architecture_pattern": "microservices|monolith|modular"
  },
  "tech_stack": ["primary technologies used"]
}`,
		truncate(readme, s.cfg.ReadmeTruncate),
		serviceSummaryJSON(services))

	response, err := s.reasoner.Complete(ctx, "You are an architecture analysis expert. Return only valid JSON.", prompt)
	if err != nil {
		logrus.Warnf("Architecture analysis call failed: %v", err)
		s.soft = true
		return result
	}

	var raw struct {
		Overview    string                      `json:"overview"`
		Connections []models.ConnectionEdge     `json:"connections"`
		Patterns    models.ArchitecturePatterns `json:"patterns"`
		TechStack   []string                    `json:"tech_stack"`
	}
	if err := jsonutil.ExtractObject(response, &raw); err != nil {
		logrus.Warnf("Architecture analysis returned no parseable JSON; keeping services only")
		return result
	}

	result.Overview = raw.Overview
	result.Connections = orEmpty(raw.Connections)
	result.Patterns = raw.Patterns
	result.TechStack = orEmpty(raw.TechStack)
	return result
}

func (s *structureStage) probeFile(ctx context.Context, ref models.RepoRef, paths ...string) models.MetadataFile {
	for _, p := range paths {
		content, err := s.remote.FileContents(ctx, ref.Owner, ref.Name, p, true)
		if err == nil {
			return models.MetadataFile{Exists: true, Path: p, Preview: truncate(content, 200)}
		}
	}
	return models.MetadataFile{Exists: false}
}

func (s *structureStage) fileExists(ctx context.Context, ref models.RepoRef, path string) bool {
	_, err := s.remote.FileContents(ctx, ref.Owner, ref.Name, path, true)
	return err == nil
}

func (s *structureStage) dirExists(ctx context.Context, ref models.RepoRef, path string) bool {
	_, err := s.remote.DirectoryListing(ctx, ref.Owner, ref.Name, path, true)
	return err == nil
}

// serviceSummaryJSON marshals a compact summary instead of full descriptors
// to bound prompt size.
func serviceSummaryJSON(services []models.ServiceDescriptor) string {
	type summary struct {
		Name         string   `json:"name"`
		Kind         string   `json:"type"`
		Technologies []string `json:"technologies,omitempty"`
		Dependencies []string `json:"dependencies,omitempty"`
	}
	summaries := make([]summary, 0, len(services))
	for _, svc := range services {
		summaries = append(summaries, summary{
			Name:         svc.Name,
			Kind:         svc.Kind,
			Technologies: svc.Technologies,
			Dependencies: svc.Dependencies,
		})
	}
	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

func minimalDescriptor(name string) models.ServiceDescriptor {
	return models.ServiceDescriptor{
		Name:         name,
		Description:  "Service information not available",
		Technologies: []string{},
		Dependencies: []string{},
		Kind:         models.KindUnknown,
	}
}

func looksExecutable(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range executableNameHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func normalizeKind(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case models.KindAPI:
		return models.KindAPI
	case models.KindWebApp:
		return models.KindWebApp
	case models.KindLibrary:
		return models.KindLibrary
	case models.KindBackgroundService, "service":
		return models.KindBackgroundService
	default:
		return models.KindUnknown
	}
}

// coercePort accepts the number, numeric string or null the model may
// return, yielding nil for anything unusable.
func coercePort(v any) *int {
	switch port := v.(type) {
	case float64:
		n := int(port)
		if n > 0 {
			return &n
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(port)); err == nil && n > 0 {
			return &n
		}
	}
	return nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func truncate(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}

func compactList(items []string, max int) string {
	if len(items) > max {
		items = items[:max]
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func orNotAvailable(s string) string {
	if s == "" {
		return "Not available"
	}
	return s
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
