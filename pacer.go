package bladevk

// FrameResources collects objects to destroy once the GPU is done with the
// frame that used them.
type FrameResources struct {
	Buffers      []Buffer
	Textures     []Texture
	TextureViews []TextureView
}

func (r *FrameResources) release(c *Context) {
	for _, v := range r.TextureViews {
		c.DestroyTextureView(v)
	}
	for _, t := range r.Textures {
		c.DestroyTexture(t)
	}
	for _, b := range r.Buffers {
		c.DestroyBuffer(b)
	}
	r.Buffers = r.Buffers[:0]
	r.Textures = r.Textures[:0]
	r.TextureViews = r.TextureViews[:0]
}

// FramePacer keeps one frame recording while the previous one executes.
// Each encoder buffer has a slot holding the point of its last submission
// and the resources that frame retired.
type FramePacer struct {
	ctx       *Context
	encoder   *CommandEncoder
	points    []SyncPoint
	resources []FrameResources
	frame     int
}

const framesInFlight = 2

func NewFramePacer(ctx *Context, name string) *FramePacer {
	enc, err := ctx.CreateCommandEncoder(CommandEncoderDesc{Name: name, BufferCount: framesInFlight})
	mustSucceed(err, "frame pacer encoder")
	return &FramePacer{
		ctx:       ctx,
		encoder:   enc,
		points:    make([]SyncPoint, framesInFlight),
		resources: make([]FrameResources, framesInFlight),
	}
}

func (p *FramePacer) slot() int { return p.frame % framesInFlight }

// BeginFrame waits until the slot's previous frame is done, destroys what
// that frame retired, and starts recording. Resources added to the
// returned set are destroyed when this slot comes around again.
func (p *FramePacer) BeginFrame() (*CommandEncoder, *FrameResources) {
	i := p.slot()
	if sp := p.points[i]; !sp.IsZero() {
		p.ctx.WaitFor(sp, WaitForever)
	}
	p.resources[i].release(p.ctx)
	p.encoder.Start()
	return p.encoder, &p.resources[i]
}

// EndFrame submits the frame and moves to the next slot.
func (p *FramePacer) EndFrame() SyncPoint {
	sp := p.ctx.Submit(p.encoder)
	p.points[p.slot()] = sp
	p.frame++
	return sp
}

// LastSyncPoint is the point of the most recently ended frame, zero
// before the first.
func (p *FramePacer) LastSyncPoint() SyncPoint {
	if p.frame == 0 {
		return SyncPoint{}
	}
	return p.points[(p.frame-1)%framesInFlight]
}

// WaitForPreviousFrame blocks until the last ended frame completes.
func (p *FramePacer) WaitForPreviousFrame() {
	if sp := p.LastSyncPoint(); !sp.IsZero() {
		p.ctx.WaitFor(sp, WaitForever)
	}
}

// Destroy waits for all frames and releases everything the pacer holds.
func (p *FramePacer) Destroy() {
	p.WaitForPreviousFrame()
	for i := range p.resources {
		p.resources[i].release(p.ctx)
	}
	p.ctx.DestroyCommandEncoder(p.encoder)
}
