// Package ecs connects a stagegl renderer to a Donburi world.
//
// [NewDonburiObserver] publishes the stats of every rendered frame as a
// [FrameEvent]; subscribe to [FrameEventType] in your systems to receive
// them. Entities carrying both a [Transform] and a [Display] component drive
// a display node; call [SyncDisplay] once per frame before rendering.
//
// Usage:
//
//	opts := stagegl.DefaultOptions()
//	opts.Observer = ecs.NewDonburiObserver(world)
//	r, err := stagegl.New(dev, opts)
//	...
//	ecs.SyncDisplay(world)
//	r.RenderFrame(root)
//	ecs.FrameEventType.ProcessEvents(world)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
