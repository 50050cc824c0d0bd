package testfixtures

import (
	"context"
	"testing"

	"github.com/example/resource-booking/internal/application"
	"github.com/example/resource-booking/internal/availability"
)

type capturingResourceRepo struct {
	created application.Resource
}

func (c *capturingResourceRepo) CreateResource(ctx context.Context, resource application.Resource) (application.Resource, error) {
	c.created = resource
	return resource, nil
}

func (c *capturingResourceRepo) GetResource(ctx context.Context, id string) (application.Resource, error) {
	return application.Resource{}, application.ErrNotFound
}

func (c *capturingResourceRepo) UpdateResource(ctx context.Context, resource application.Resource) (application.Resource, error) {
	return resource, nil
}

func (c *capturingResourceRepo) DeleteResource(ctx context.Context, id string) error {
	return nil
}

func (c *capturingResourceRepo) ListResources(ctx context.Context, resourceType availability.ResourceType) ([]application.Resource, error) {
	return nil, nil
}

func TestServiceFactoryNewResourceService(t *testing.T) {
	factory := NewServiceFactory()
	repo := &capturingResourceRepo{}

	svc := factory.NewResourceService(ResourceServiceDeps{Resources: repo})
	actor := application.Actor{UserID: "admin", DisplayName: "Admin", IsAdmin: true}
	input := application.ResourceInput{Name: "Projector Pool", Type: availability.ResourceDevice, Quantity: 4}

	resource, err := svc.CreateResource(context.Background(), application.CreateResourceParams{Actor: actor, Input: input})
	if err != nil {
		t.Fatalf("CreateResource returned error: %v", err)
	}

	if resource.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", resource.ID)
	}
	if repo.created.ID != resource.ID {
		t.Fatalf("repository received unexpected ID: %q", repo.created.ID)
	}
	if !resource.CreatedAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Current(), resource.CreatedAt)
	}
}
