package renderer

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
)

var errFrameInFlight = errors.New("previous frame surface not yet presented")

type wgpuMesh struct {
	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
	indexCount   int
}

func (m *wgpuMesh) IndexCount() int {
	return m.indexCount
}

// drawSlot is the uniform buffer and bind group of one draw within a frame.
type drawSlot struct {
	buffer    *wgpu.Buffer
	bindGroup *wgpu.BindGroup
}

type wgpuRendererBackendImpl struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat        wgpu.TextureFormat
	msaaTexture          *wgpu.Texture
	msaaTextureView      *wgpu.TextureView
	depthTexture         *wgpu.Texture
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	presentMode wgpu.PresentMode
	sampleCount MSAASampleCount

	pipeline   *wgpu.RenderPipeline
	drawLayout *wgpu.BindGroupLayout
	slots      []drawSlot

	// Frame state between BeginFrame and Present
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// newWGPURendererBackend creates the instance, surface, adapter, and device for a window surface.
// The flat pipeline is built on the first ConfigureSurface, once the surface format is known.
func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, sampleCount MSAASampleCount) (*wgpuRendererBackendImpl, error) {
	if surfaceDescriptor == nil {
		return nil, errors.New("surface descriptor is nil")
	}
	runtime.LockOSThread()
	b := &wgpuRendererBackendImpl{
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
		sampleCount: sampleCount,
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{Label: "Figurine Device"})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()
	return b, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 {
		return errors.New("surface reports no formats")
	}
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	b.releaseTargets()
	count := uint32(b.sampleCount)
	size := wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1}

	var err error
	if count > 1 {
		// The pass draws into the MSAA texture and resolves into the swapchain view.
		b.msaaTexture, err = b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         "MSAA Texture",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("create msaa texture: %w", err)
		}
		if b.msaaTextureView, err = b.msaaTexture.CreateView(nil); err != nil {
			return fmt.Errorf("create msaa view: %w", err)
		}
	}

	b.depthTexture, err = b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth Texture",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create depth texture: %w", err)
	}
	if b.depthTextureView, err = b.depthTexture.CreateView(nil); err != nil {
		return fmt.Errorf("create depth view: %w", err)
	}

	storeOp := wgpu.StoreOpStore
	if count > 1 {
		storeOp = wgpu.StoreOpDiscard
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       b.msaaTextureView, // nil without MSAA; set per frame
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    storeOp,
				ClearValue: wgpu.Color{R: 0.93, G: 0.93, B: 0.95, A: 1.0},
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}

	if b.pipeline == nil {
		return b.createFlatPipeline()
	}
	return nil
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
}

// createFlatPipeline builds the single render pipeline: one vec3 position stream and one uniform block.
func (b *wgpuRendererBackendImpl) createFlatPipeline() error {
	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "flat.wgsl",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: flatShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile flat shader: %w", err)
	}
	defer module.Release()

	var u drawUniform
	b.drawLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Draw Uniform Layout",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: uint64(u.Size()),
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Flat Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.drawLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	defer layout.Release()

	b.pipeline, err = b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Flat Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: 12,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{{
					Format:         wgpu.VertexFormatFloat32x3,
					Offset:         0,
					ShaderLocation: 0,
				}},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    b.surfaceFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
	})
	if err != nil {
		return fmt.Errorf("create render pipeline: %w", err)
	}
	return nil
}

func (b *wgpuRendererBackendImpl) CreateMesh(label string, vertexData, indexData []byte, indexCount int) (Mesh, error) {
	if len(vertexData) == 0 || len(indexData) == 0 {
		return nil, fmt.Errorf("mesh %q has no data", label)
	}
	vb, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Vertex Buffer",
		Size:  uint64(len(vertexData)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	b.queue.WriteBuffer(vb, 0, vertexData)

	ib, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Index Buffer",
		Size:  uint64(len(indexData)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vb.Release()
		return nil, err
	}
	b.queue.WriteBuffer(ib, 0, indexData)

	return &wgpuMesh{vertexBuffer: vb, indexBuffer: ib, indexCount: indexCount}, nil
}

func (b *wgpuRendererBackendImpl) ReleaseMesh(m Mesh) {
	wm, ok := m.(*wgpuMesh)
	if !ok {
		return
	}
	wm.vertexBuffer.Release()
	wm.indexBuffer.Release()
}

// slot returns the uniform resources of draw i, creating them on first use.
func (b *wgpuRendererBackendImpl) slot(i int) (drawSlot, error) {
	for len(b.slots) <= i {
		var u drawUniform
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("Draw %d Uniform", len(b.slots)),
			Size:  uint64(u.Size()),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return drawSlot{}, err
		}
		bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("Draw %d Bind Group", len(b.slots)),
			Layout: b.drawLayout,
			Entries: []wgpu.BindGroupEntry{{
				Binding: 0,
				Buffer:  buf,
				Offset:  0,
				Size:    wgpu.WholeSize,
			}},
		})
		if err != nil {
			buf.Release()
			return drawSlot{}, err
		}
		b.slots = append(b.slots, drawSlot{buffer: buf, bindGroup: bg})
	}
	return b.slots[i], nil
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	if b.frameSurface != nil {
		return errFrameInFlight
	}
	if b.renderPassDescriptor == nil {
		return errors.New("surface not configured")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = view
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = view
	}
	b.framePass = encoder.BeginRenderPass(b.renderPassDescriptor)
	b.framePass.SetPipeline(b.pipeline)
	b.frameEncoder = encoder
	b.frameSurface = surfaceTexture
	b.frameView = view
	return nil
}

func (b *wgpuRendererBackendImpl) Draw(slot int, m Mesh, uniform []byte) error {
	wm, ok := m.(*wgpuMesh)
	if !ok || b.framePass == nil {
		return errors.New("draw outside of a frame")
	}
	s, err := b.slot(slot)
	if err != nil {
		return fmt.Errorf("draw slot %d: %w", slot, err)
	}
	b.queue.WriteBuffer(s.buffer, 0, uniform)

	b.framePass.SetBindGroup(0, s.bindGroup, nil)
	b.framePass.SetVertexBuffer(0, wm.vertexBuffer, 0, wgpu.WholeSize)
	b.framePass.SetIndexBuffer(wm.indexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	b.framePass.DrawIndexed(uint32(wm.indexCount), 1, 0, 0, 0)
	return nil
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	if b.framePass == nil {
		return nil
	}
	b.framePass.End()
	b.framePass.Release()
	b.framePass = nil

	commandBuffer, err := b.frameEncoder.Finish(nil)
	b.frameEncoder.Release()
	b.frameEncoder = nil
	if err != nil {
		b.releaseFrameSurface()
		return fmt.Errorf("finish frame: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) Present() {
	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.releaseFrameSurface()
}

func (b *wgpuRendererBackendImpl) releaseFrameSurface() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuRendererBackendImpl) releaseTargets() {
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if b.msaaTexture != nil {
		b.msaaTexture.Release()
		b.msaaTexture = nil
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
		b.depthTextureView = nil
	}
	if b.depthTexture != nil {
		b.depthTexture.Release()
		b.depthTexture = nil
	}
}

func (b *wgpuRendererBackendImpl) Release() {
	b.releaseFrameSurface()
	for _, s := range b.slots {
		s.bindGroup.Release()
		s.buffer.Release()
	}
	b.slots = nil
	b.releaseTargets()
	if b.pipeline != nil {
		b.pipeline.Release()
		b.pipeline = nil
	}
	if b.drawLayout != nil {
		b.drawLayout.Release()
		b.drawLayout = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
