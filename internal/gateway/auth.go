package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/guardian-ibera/firewatch/internal/model"
)

// Login exchanges credentials for an access token. The endpoint expects an
// OAuth2 password form, so the email travels as "username".
func (c *Client) Login(ctx context.Context, email, password string) (model.Token, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var tok model.Token
	err := c.do(ctx, request{
		op:          "login",
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, &tok)
	if err != nil {
		return model.Token{}, err
	}
	if tok.AccessToken == "" {
		return model.Token{}, shapeError("login", "access_token")
	}
	return tok, nil
}

// CurrentUser resolves the identity behind the attached credential.
func (c *Client) CurrentUser(ctx context.Context) (model.User, error) {
	var u model.User
	if err := c.get(ctx, "current user", "/auth/me", nil, &u); err != nil {
		return model.User{}, err
	}
	if u.Email == "" {
		return model.User{}, shapeError("current user", "email")
	}
	return u, nil
}

func (c *Client) Register(ctx context.Context, reg model.Registration) (model.User, error) {
	payload, err := json.Marshal(reg)
	if err != nil {
		return model.User{}, &Error{Kind: KindUnknown, Op: "register", Err: err}
	}

	var u model.User
	err = c.do(ctx, request{
		op:          "register",
		method:      http.MethodPost,
		path:        "/auth/register",
		body:        bytes.NewReader(payload),
		contentType: "application/json",
	}, &u)
	if err != nil {
		return model.User{}, err
	}
	if u.Email == "" {
		return model.User{}, shapeError("register", "email")
	}
	return u, nil
}
