// Package core holds the HTTP plumbing shared by memberkit modules: typed
// handlers, JSON request binding, the JSON response envelope and HTTP errors.
//
//	h := core.HandlerFunc[RenewRequest](func(r *http.Request, req RenewRequest) core.Response {
//		return core.JSON("renewed", result, nil)
//	})
//	router.Post("/renew", core.Wrap(h, core.WithBinders[RenewRequest](core.BindJSON())))
package core
