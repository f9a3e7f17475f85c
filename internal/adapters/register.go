package adapters

// RegisterAll wires every built-in adapter into reg. Adapters are listed
// explicitly rather than discovered, so a new adapter can't silently start
// running until someone adds it here.
func RegisterAll(reg *Registry) {
	reg.Register(NewNmap())
	reg.Register(NewSuricata())
	reg.Register(NewZeek())
	reg.Register(NewOSSEC())
	reg.Register(NewPiAlert())
	reg.Register(NewNtopng())
	reg.Register(NewClamAV())
	reg.Register(NewFail2Ban())
	reg.Register(NewOpenVAS())
	reg.Register(NewTShark())
}
