package noop

import (
	"context"
	"testing"

	"github.com/rhuss/appgate/pkg/api"
	"github.com/rhuss/appgate/pkg/auth"
)

func TestResolverRejectsEverything(t *testing.T) {
	a, err := Resolver{}.AuthForSessionToken(context.Background(), auth.SessionRequest{SessionToken: "r:any"})
	if a != nil {
		t.Errorf("auth = %+v, want nil", a)
	}
	apiErr, ok := api.As(err)
	if !ok || apiErr.Code != api.CodeInvalidSessionToken {
		t.Errorf("err = %v, want invalid session token", err)
	}
}
