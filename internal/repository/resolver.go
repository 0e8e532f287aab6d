package repository

import (
	"context"
)

// Resource is a node as seen through a Resolver.
type Resource struct {
	*Node
	resolver *Resolver
}

func (r *Resource) Resolver() *Resolver {
	return r.resolver
}

// Decorator may observe or replace a resource right after it is resolved.
// Decorators run on every GetResource, including the ones they trigger themselves.
type Decorator interface {
	Decorate(ctx context.Context, res *Resource) *Resource
}

// DecoratorFunc adapts a function to a Decorator
type DecoratorFunc func(ctx context.Context, res *Resource) *Resource

func (f DecoratorFunc) Decorate(ctx context.Context, res *Resource) *Resource {
	return f(ctx, res)
}

// Resolver resolves paths to resources on behalf of one session.
type Resolver struct {
	session    *Session
	decorators []Decorator
}

func NewResolver(session *Session, decorators ...Decorator) *Resolver {
	return &Resolver{session: session, decorators: decorators}
}

func (r *Resolver) Session() *Session {
	return r.session
}

func (r *Resolver) UserID() string {
	return r.session.UserID()
}

func (r *Resolver) IsSystemUser() bool {
	return r.session.IsSystemUser()
}

// GetResource returns the decorated resource at p, or nil when there is no node.
func (r *Resolver) GetResource(ctx context.Context, p string) (*Resource, error) {
	n, err := r.session.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}

	res := &Resource{Node: n, resolver: r}
	for _, d := range r.decorators {
		if decorated := d.Decorate(ctx, res); decorated != nil {
			res = decorated
		}
	}
	return res, nil
}

// Reload re-reads the resource at the same path without running decorators.
func (r *Resolver) Reload(ctx context.Context, res *Resource) (*Resource, error) {
	n, err := r.session.Get(ctx, res.Path)
	if err != nil || n == nil {
		return nil, err
	}
	return &Resource{Node: n, resolver: r}, nil
}

// Refresh makes changes committed elsewhere visible to this resolver.
func (r *Resolver) Refresh() {
	r.session.Refresh()
}

func (r *Resolver) Close() {
	r.session.Close()
}
