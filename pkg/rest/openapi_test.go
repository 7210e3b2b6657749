package rest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstack/ras-go/pkg/auth"
)

func TestBuildOpenAPIIncludesBearerSchemeOnAuthenticatedRoutes(t *testing.T) {
	t.Parallel()

	routes := []Route{
		Endpoint("GET", "/items/{id}", func(_ context.Context, _ itemRequest) (itemResponse, error) {
			return itemResponse{}, nil
		}),
		AuthenticatedEndpoint("POST", "/items", auth.PermissionGroups{{"docs:write"}}, func(_ context.Context, _ auth.AuthenticatedUser, _ itemResponse) (itemResponse, error) {
			return itemResponse{}, nil
		}),
	}

	doc := BuildOpenAPI("ras", "1.0.0", routes)

	require.NotNil(t, doc.Components.SecuritySchemes["bearerAuth"])
	assert.Equal(t, "http", doc.Components.SecuritySchemes["bearerAuth"].Value.Type)
	assert.Equal(t, "bearer", doc.Components.SecuritySchemes["bearerAuth"].Value.Scheme)

	unauthenticated := doc.Paths.Find("/items/{id}")
	require.NotNil(t, unauthenticated)
	require.NotNil(t, unauthenticated.Get)
	assert.Nil(t, unauthenticated.Get.Security)

	authenticated := doc.Paths.Find("/items")
	require.NotNil(t, authenticated)
	require.NotNil(t, authenticated.Post)
	require.NotNil(t, authenticated.Post.Security)
	assert.Len(t, *authenticated.Post.Security, 1)
}

func TestBuildOpenAPIDeclaresPathParameters(t *testing.T) {
	t.Parallel()

	routes := []Route{
		Endpoint("GET", "/items/{id}", func(_ context.Context, _ itemRequest) (itemResponse, error) {
			return itemResponse{}, nil
		}),
	}

	doc := BuildOpenAPI("ras", "1.0.0", routes)
	item := doc.Paths.Find("/items/{id}")
	require.NotNil(t, item)
	require.Len(t, item.Get.Parameters, 1)
	assert.Equal(t, "id", item.Get.Parameters[0].Value.Name)
	assert.Equal(t, "path", item.Get.Parameters[0].Value.In)
}

func TestBuildOpenAPIRequestBodyOnlyForWriteVerbs(t *testing.T) {
	t.Parallel()

	routes := []Route{
		Endpoint("GET", "/items/{id}", func(_ context.Context, _ itemRequest) (itemResponse, error) {
			return itemResponse{}, nil
		}),
		Endpoint("POST", "/items", func(_ context.Context, _ itemResponse) (itemResponse, error) {
			return itemResponse{}, nil
		}),
	}

	doc := BuildOpenAPI("ras", "1.0.0", routes)

	get := doc.Paths.Find("/items/{id}")
	assert.Nil(t, get.Get.RequestBody)

	post := doc.Paths.Find("/items")
	require.NotNil(t, post.Post.RequestBody)
}
