package docs

// @title           Ride Dispatch API
// @version         1.0
// @description     Dispatch service handles ride requests, real-time fan-out to online drivers, exclusive ride acceptance, the full ride lifecycle, and event replay. WebSocket endpoints stream lifecycle events to riders and drivers.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
