package server

//go:generate swag init -g internal/server/server.go -o internal/server/docs

// @title convotap API
// @version 0.1
// @description Daemon API for the captured conversation exchange: latest snapshot, tracked tabs, debugger re-check and typed popup messages.
// @contact.name convotap Maintainers
// @contact.url https://github.com/raysh454/convotap
// @BasePath /
