package server

// Route path constants
const (
	RouteIndex  = "/{$}"
	RouteLogin  = "/login"
	RouteLogout = "/logout"
	RouteStatus = "/status"
	RouteMe     = "/me"
)

// Route names. The gate matches whitelist entries against these as well as paths.
const (
	RouteNameIndex    = "index"
	RouteNameLogin    = "login"
	RouteNameLogout   = "logout"
	RouteNameCallback = "auth"
	RouteNameStatus   = "status"
	RouteNameMe       = "me"
)
