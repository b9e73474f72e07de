package main

// General API documentation for swaggo. Run `make swagger-gen` to regenerate docs.
//
// @title           emberd API
// @version         0.4.0
// @description     HTTP API for local model acquisition, backend selection, and chat.
//
// @contact.name   emberd maintainers
// @contact.url    https://github.com/your-org/emberd
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
