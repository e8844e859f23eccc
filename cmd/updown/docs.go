package main

//go:generate swag init -g cmd/updown/main.go -o docs

// @title           Up/Down Prediction Engine API
// @version         0.1.0
// @description     Timed up/down price prediction games, scoring, period rankings and tiered airdrops.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
