package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoinsight/config"
	"repoinsight/internal/models"
)

var testRef = models.RepoRef{Owner: "dotnet", Name: "eShop"}

func microservicesRemote() *stubRemote {
	return &stubRemote{
		files: map[string]string{
			"README.md":                           "# eShop\nA reference microservices application.",
			"src/Catalog.API/Catalog.API.csproj":  "<Project Sdk=\"Microsoft.NET.Sdk.Web\"></Project>",
			"src/Catalog.API/Program.cs":          "var builder = WebApplication.CreateBuilder(args);",
			"src/Basket.API/Basket.API.csproj":    "<Project Sdk=\"Microsoft.NET.Sdk.Web\"></Project>",
			"src/Basket.API/Program.cs":           "var builder = WebApplication.CreateBuilder(args);",
		},
		listings: map[string][]models.DirEntry{
			"src": {
				{Name: "Catalog.API", Path: "src/Catalog.API", Type: "dir"},
				{Name: "Basket.API", Path: "src/Basket.API", Type: "dir"},
			},
		},
		search: []string{
			"src/Catalog.API/Catalog.API.csproj",
			"src/Basket.API/Basket.API.csproj",
		},
	}
}

func microservicesReasoner() *stubReasoner {
	return &stubReasoner{responses: map[string]string{
		"repository analysis": "```json\n[\"Catalog.API\", \"Basket.API\"]\n```",
		"code analysis": `{
			"description": "Manages the product catalog",
			"technologies": ["ASP.NET Core"],
			"dependencies": ["PostgreSQL"],
			"type": "api",
			"port": "8080"
		}`,
		"architecture analysis": `Here is the analysis:
		{
			"overview": "Microservices reference application",
			"connections": [{"from": "Basket.API", "to": "Catalog.API", "method": "REST"}],
			"patterns": {
				"shared_technologies": ["ASP.NET Core"],
				"communication_styles": ["REST"],
				"architecture_pattern": "microservices"
			},
			"tech_stack": [".NET", "PostgreSQL"]
		}`,
	}}
}

func TestExploreDiscoversServices(t *testing.T) {
	stage := newStructureStage(microservicesRemote(), microservicesReasoner(), config.Default().Analysis)

	result, degraded, err := stage.Explore(context.Background(), testRef)
	require.NoError(t, err)
	assert.False(t, degraded)

	require.Len(t, result.Services, 2)
	assert.Equal(t, "Catalog.API", result.Services[0].Name)
	assert.Equal(t, "Basket.API", result.Services[1].Name)
	for _, svc := range result.Services {
		assert.Equal(t, models.KindAPI, svc.Kind)
		require.NotNil(t, svc.Port)
		assert.Equal(t, 8080, *svc.Port)
	}

	assert.Equal(t, "Microservices reference application", result.Overview)
	require.Len(t, result.Connections, 1)
	assert.Equal(t, "Basket.API", result.Connections[0].From)
	assert.Equal(t, "microservices", result.Patterns.ArchitecturePattern)
	assert.Equal(t, []string{".NET", "PostgreSQL"}, result.TechStack)
}

func TestExploreProseDiscoveryYieldsNoServices(t *testing.T) {
	reasoner := microservicesReasoner()
	reasoner.responses["repository analysis"] = "I think the services are: Catalog, Basket"
	stage := newStructureStage(microservicesRemote(), reasoner, config.Default().Analysis)

	result, degraded, err := stage.Explore(context.Background(), testRef)
	require.NoError(t, err)
	assert.False(t, degraded)

	assert.Equal(t, []models.ServiceDescriptor{}, result.Services)
	assert.Equal(t, "Microservices reference application", result.Overview)
}

func TestExploreServiceAnalysisFailureYieldsMinimalDescriptors(t *testing.T) {
	reasoner := microservicesReasoner()
	delete(reasoner.responses, "code analysis")
	stage := newStructureStage(microservicesRemote(), reasoner, config.Default().Analysis)

	result, degraded, err := stage.Explore(context.Background(), testRef)
	require.NoError(t, err)
	assert.True(t, degraded)

	// One descriptor per candidate, never fewer.
	require.Len(t, result.Services, 2)
	for _, svc := range result.Services {
		assert.Equal(t, models.KindUnknown, svc.Kind)
		assert.Equal(t, "Service information not available", svc.Description)
		assert.Empty(t, svc.Technologies)
		assert.Nil(t, svc.Port)
	}
}

func TestExploreEmptyRepository(t *testing.T) {
	remote := &stubRemote{}
	reasoner := &stubReasoner{err: errors.New("model unavailable")}
	stage := newStructureStage(remote, reasoner, config.Default().Analysis)

	result, degraded, err := stage.Explore(context.Background(), testRef)
	require.NoError(t, err)
	assert.True(t, degraded)

	assert.Equal(t, []models.ServiceDescriptor{}, result.Services)
	assert.Equal(t, []models.ConnectionEdge{}, result.Connections)
	assert.Equal(t, []string{}, result.TechStack)
	assert.Empty(t, result.Overview)
}

func TestExploreIsDeterministic(t *testing.T) {
	run := func() []byte {
		stage := newStructureStage(microservicesRemote(), microservicesReasoner(), config.Default().Analysis)
		result, _, err := stage.Explore(context.Background(), testRef)
		require.NoError(t, err)
		data, err := json.Marshal(result)
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, run(), run())
}

func TestRepositoryMetadataProbes(t *testing.T) {
	remote := microservicesRemote()
	remote.files["LICENSE"] = "MIT License\n..."
	remote.files["Dockerfile"] = "FROM mcr.microsoft.com/dotnet/sdk:8.0"
	remote.listings[".github/workflows"] = []models.DirEntry{
		{Name: "ci.yml", Path: ".github/workflows/ci.yml", Type: "file"},
	}
	remote.listings["docs"] = []models.DirEntry{}
	stage := newStructureStage(remote, microservicesReasoner(), config.Default().Analysis)

	md := stage.repositoryMetadata(context.Background(), testRef)

	assert.True(t, md.License.Exists)
	assert.Equal(t, "LICENSE", md.License.Path)
	assert.False(t, md.Contributing.Exists)
	require.Len(t, md.CIWorkflows, 1)
	assert.Equal(t, "ci.yml", md.CIWorkflows[0].Name)
	assert.True(t, md.Docker.Dockerfile)
	assert.False(t, md.Docker.DockerCompose)
	assert.True(t, md.Documentation.HasDocsFolder)
	assert.False(t, md.Testing.HasTestDirectory)
}

func TestNormalizeKind(t *testing.T) {
	cases := map[string]string{
		"api":                models.KindAPI,
		" API ":              models.KindAPI,
		"webapp":             models.KindWebApp,
		"library":            models.KindLibrary,
		"service":            models.KindBackgroundService,
		"background-service": models.KindBackgroundService,
		"microservice":       models.KindUnknown,
		"":                   models.KindUnknown,
	}
	for input, want := range cases {
		assert.Equal(t, want, normalizeKind(input), "input %q", input)
	}
}

func TestCoercePort(t *testing.T) {
	require.Nil(t, coercePort(nil))
	require.Nil(t, coercePort("not a port"))
	require.Nil(t, coercePort(float64(-1)))

	p := coercePort(float64(8080))
	require.NotNil(t, p)
	assert.Equal(t, 8080, *p)

	p = coercePort(" 5005 ")
	require.NotNil(t, p)
	assert.Equal(t, 5005, *p)
}
