// Package sse streams events to HTTP clients as Server-Sent Events.
//
// A Hub fans published events out to subscribers. Each subscriber carries a
// glob pattern matched against the event topic, so a client can follow
// every agent ("*") or a family of them ("calc-*").
//
//	hub := sse.NewHub(log)
//	go hub.Run()
//	hub.Publish(sse.Event{Type: "registered", Topic: "calc", Data: payload})
//	router.GET("/events", func(c *gin.Context) {
//	    sse.Serve(hub, c.Writer, c.Request, c.Query("agent"))
//	})
//
// Slow subscribers lose events rather than stall the hub.
package sse
