package httpkit

import "net/http"

// APIV1 is the path every versioned module mounts under
const APIV1 = "/api/v1"

// MountAPIV1 opens the /api/v1 scope, applies mw to it, then lets mount register modules
//
//	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
//		imports.MountRoutes(api)
//	})
func MountAPIV1(r Router, mw []func(http.Handler) http.Handler, mount func(Router)) {
	r.Route(APIV1, func(api Router) {
		api.Use(mw...)
		mount(api)
	})
}
