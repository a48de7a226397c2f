/*
Package authsdk is a client for the accounts service.

A Client keeps the session cookie in a cookie jar and so behaves like a
single browser:

	client := authsdk.NewClient("https://accounts.example.com")

	_, err := client.Register(ctx, authsdk.RegisterRequest{
		Email:           "a@example.com",
		Password:        "pass1",
		ConfirmPassword: "pass1",
		DisplayName:     "Alice",
	})

	login, err := client.Login(ctx, authsdk.LoginRequest{
		Email:      "a@example.com",
		Password:   "pass1",
		RememberMe: true,
	})
	fmt.Println("continue to", login.Redirect)

	me, err := client.Me(ctx)

	err = client.Logout(ctx)

Non-browser callers can copy the sealed cookie value into BearerToken and
send it as an Authorization header instead.

# Errors

Every non-2xx response is returned as an *APIError carrying the service's
error code. Validation failures list every violated field rule:

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodeValidation {
		for _, v := range apiErr.Violations {
			fmt.Println(v.Field, v.Message)
		}
	}

Requests to protected routes without a session fail with
ErrorCodeLoginRequired; signed-in requests lacking a role fail with
ErrorCodeForbidden.
*/
package authsdk
