package vksgfx

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/ibd1279/vks"
	"github.com/pkg/errors"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
)

// words is SPIR-V code as 32-bit little endian words.
type words []uint32

func newWords(b []byte) (words, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Errorf("spir-v code size %d is not a multiple of 4", len(b))
	}
	w := make([]uint32, len(b)/4)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, w); err != nil {
		return nil, err
	}
	return words(w), nil
}

func (w words) sizeof() uint64 {
	return uint64(len(w) * 4)
}

// Triangle is a gfx.Renderer that clears to black and draws a single
// triangle whose vertices come from the vertex shader.
type Triangle struct {
	dev  *Device
	vert words
	frag words
}

// NewTriangle validates the shader code without creating any Vulkan
// objects.
func NewTriangle(dev *Device, vert, frag []byte) (*Triangle, error) {
	v, err := newWords(vert)
	if err != nil {
		return nil, errors.Wrap(err, "vertex shader")
	}
	f, err := newWords(frag)
	if err != nil {
		return nil, errors.Wrap(err, "fragment shader")
	}
	return &Triangle{dev: dev, vert: v, frag: f}, nil
}

// LoadTriangle reads vert.spv and frag.spv from dir.
func LoadTriangle(dev *Device, dir string) (*Triangle, error) {
	vert, err := os.ReadFile(filepath.Join(dir, "vert.spv"))
	if err != nil {
		return nil, err
	}
	frag, err := os.ReadFile(filepath.Join(dir, "frag.spv"))
	if err != nil {
		return nil, err
	}
	return NewTriangle(dev, vert, frag)
}

// CreateRenderPass creates a single subpass render pass that clears the
// color attachment and leaves it ready for presentation.
func (t *Triangle) CreateRenderPass(format gfx.Format) (gfx.RenderPass, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	attachments := vks.AttachmentDescriptionCSlice(arp,
		vks.AttachmentDescription{}.
			WithFormat(vks.Format(format)).
			WithSamples(vks.VK_SAMPLE_COUNT_1_BIT).
			WithLoadOp(vks.VK_ATTACHMENT_LOAD_OP_CLEAR).
			WithStoreOp(vks.VK_ATTACHMENT_STORE_OP_STORE).
			WithStencilLoadOp(vks.VK_ATTACHMENT_LOAD_OP_DONT_CARE).
			WithStencilStoreOp(vks.VK_ATTACHMENT_STORE_OP_DONT_CARE).
			WithInitialLayout(vks.VK_IMAGE_LAYOUT_UNDEFINED).
			WithFinalLayout(vks.VK_IMAGE_LAYOUT_PRESENT_SRC_KHR),
	)
	colorAttachments := vks.AttachmentReferenceCSlice(arp,
		vks.AttachmentReference{}.
			WithAttachment(0).
			WithLayout(vks.VK_IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL),
	)
	subpasses := vks.SubpassDescriptionCSlice(arp,
		vks.SubpassDescription{}.
			WithPipelineBindPoint(vks.VK_PIPELINE_BIND_POINT_GRAPHICS).
			WithPColorAttachments(colorAttachments),
	)
	// The subpass waits for the acquire semaphore at the same stage the
	// submission does.
	dependencies := vks.SubpassDependencyCSlice(arp,
		vks.SubpassDependency{}.
			WithSrcSubpass(vks.VK_SUBPASS_EXTERNAL).
			WithSrcStageMask(vks.PipelineStageFlags(vks.VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT)).
			WithDstStageMask(vks.PipelineStageFlags(vks.VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT)).
			WithDstAccessMask(vks.AccessFlags(vks.VK_ACCESS_COLOR_ATTACHMENT_WRITE_BIT)),
	)

	info := vks.CPtr(arp, &vks.RenderPassCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.RenderPassCreateInfo) {
			in.SetPAttachments(attachments)
			in.SetPSubpasses(subpasses)
			in.SetPDependencies(dependencies)
		},
	)

	var rp vks.RenderPass
	if result := t.dev.device.CreateRenderPass(info, nil, &rp); result.IsError() {
		return 0, errors.Wrap(result.AsErr(), "create render pass")
	}
	return t.dev.renderPasses.put(gfx.RenderPass(t.dev.id()), rp), nil
}

func (t *Triangle) DestroyRenderPass(r gfx.RenderPass) {
	if rp, ok := t.dev.renderPasses.take(r); ok {
		t.dev.device.DestroyRenderPass(rp, nil)
	}
}

func (t *Triangle) shaderModule(code words) (vks.ShaderModule, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	info := vks.CPtr(arp, &vks.ShaderModuleCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.ShaderModuleCreateInfo) {
			in.SetCodeSize(code.sizeof())
			in.SetPCode(code)
		},
	)
	var module vks.ShaderModule
	if result := t.dev.device.CreateShaderModule(info, nil, &module); result.IsError() {
		return module, errors.Wrap(result.AsErr(), "create shader module")
	}
	return module, nil
}

// CreatePipeline creates the pipeline layout and a graphics pipeline with a
// fixed viewport covering extent. The shader modules only live for the
// duration of the call.
func (t *Triangle) CreatePipeline(r gfx.RenderPass, ext gfx.Extent) (gfx.Pipeline, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	layoutInfo := vks.CPtr(arp, &vks.PipelineLayoutCreateInfo{},
		vks.SetDefaultSType,
	)
	var layout vks.PipelineLayout
	if result := t.dev.device.CreatePipelineLayout(layoutInfo, nil, &layout); result.IsError() {
		return 0, errors.Wrap(result.AsErr(), "create pipeline layout")
	}

	p, err := t.createPipeline(r, ext, layout)
	if err != nil {
		t.dev.device.DestroyPipelineLayout(layout, nil)
		return 0, err
	}
	return t.dev.pipelines.put(gfx.Pipeline(t.dev.id()), pipeline{layout: layout, pipeline: p}), nil
}

func (t *Triangle) createPipeline(r gfx.RenderPass, ext gfx.Extent, layout vks.PipelineLayout) (vks.Pipeline, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	var p vks.Pipeline
	vertModule, err := t.shaderModule(t.vert)
	if err != nil {
		return p, err
	}
	defer t.dev.device.DestroyShaderModule(vertModule, nil)

	fragModule, err := t.shaderModule(t.frag)
	if err != nil {
		return p, err
	}
	defer t.dev.device.DestroyShaderModule(fragModule, nil)

	name := vks.NewCStr(arp, "main")
	stages := vks.PipelineShaderStageCreateInfoCSlice(arp,
		vks.PipelineShaderStageCreateInfo{}.
			WithDefaultSType().
			WithStage(vks.VK_SHADER_STAGE_VERTEX_BIT).
			WithModule(vertModule).
			WithPName(name),
		vks.PipelineShaderStageCreateInfo{}.
			WithDefaultSType().
			WithStage(vks.VK_SHADER_STAGE_FRAGMENT_BIT).
			WithModule(fragModule).
			WithPName(name),
	)

	vertexInputState := vks.CPtr(arp, &vks.PipelineVertexInputStateCreateInfo{},
		vks.SetDefaultSType,
	)

	inputAssemblyState := vks.CPtr(arp, &vks.PipelineInputAssemblyStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineInputAssemblyStateCreateInfo) {
			in.SetTopology(vks.VK_PRIMITIVE_TOPOLOGY_TRIANGLE_LIST)
			in.SetPrimitiveRestartEnable(vks.VK_FALSE)
		},
	)

	vkExtent := vks.Extent2D{}.WithWidth(ext.Width).WithHeight(ext.Height)
	viewports := vks.ViewportCSlice(arp,
		vks.Viewport{}.
			WithWidth(float32(ext.Width)).
			WithHeight(float32(ext.Height)).
			WithMaxDepth(1.0),
	)
	scissors := vks.Rect2DCSlice(arp,
		vks.Rect2D{}.
			WithExtent(vkExtent),
	)

	viewportState := vks.CPtr(arp, &vks.PipelineViewportStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineViewportStateCreateInfo) {
			in.SetPViewports(viewports)
			in.SetPScissors(scissors)
		},
	)

	rasterizationState := vks.CPtr(arp, &vks.PipelineRasterizationStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineRasterizationStateCreateInfo) {
			in.SetDepthClampEnable(vks.VK_FALSE)
			in.SetRasterizerDiscardEnable(vks.VK_FALSE)
			in.SetPolygonMode(vks.VK_POLYGON_MODE_FILL)
			in.SetLineWidth(1.0)
			in.SetCullMode(vks.CullModeFlags(vks.VK_CULL_MODE_BACK_BIT))
			in.SetFrontFace(vks.VK_FRONT_FACE_CLOCKWISE)
			in.SetDepthBiasEnable(vks.VK_FALSE)
		},
	)

	multisampleState := vks.CPtr(arp, &vks.PipelineMultisampleStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineMultisampleStateCreateInfo) {
			in.SetSampleShadingEnable(vks.VK_FALSE)
			in.SetRasterizationSamples(vks.VK_SAMPLE_COUNT_1_BIT)
		},
	)

	blendAttachments := vks.PipelineColorBlendAttachmentStateCSlice(arp,
		vks.PipelineColorBlendAttachmentState{}.
			WithColorWriteMask(vks.ColorComponentFlags(vks.VK_COLOR_COMPONENT_R_BIT|vks.VK_COLOR_COMPONENT_G_BIT|vks.VK_COLOR_COMPONENT_B_BIT|vks.VK_COLOR_COMPONENT_A_BIT)).
			WithBlendEnable(vks.VK_FALSE),
	)

	colorBlendState := vks.CPtr(arp, &vks.PipelineColorBlendStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineColorBlendStateCreateInfo) {
			in.SetLogicOpEnable(vks.VK_FALSE)
			in.SetLogicOp(vks.VK_LOGIC_OP_COPY)
			in.SetPAttachments(blendAttachments)
		},
	)

	infos := vks.GraphicsPipelineCreateInfoCSlice(arp,
		vks.GraphicsPipelineCreateInfo{}.
			WithDefaultSType().
			WithPStages(stages).
			WithPVertexInputState(vertexInputState).
			WithPInputAssemblyState(inputAssemblyState).
			WithPViewportState(viewportState).
			WithPRasterizationState(rasterizationState).
			WithPMultisampleState(multisampleState).
			WithPColorBlendState(colorBlendState).
			WithLayout(layout).
			WithRenderPass(t.dev.renderPasses.get(r)),
	)

	pipelines := make([]vks.Pipeline, len(infos))
	result := t.dev.device.CreateGraphicsPipelines(
		vks.NullPipelineCache,
		uint32(len(infos)),
		infos,
		nil,
		pipelines)
	if result.IsError() {
		return p, errors.Wrap(result.AsErr(), "create graphics pipeline")
	}
	return pipelines[0], nil
}

func (t *Triangle) DestroyPipeline(p gfx.Pipeline) {
	if pl, ok := t.dev.pipelines.take(p); ok {
		t.dev.device.DestroyPipeline(pl.pipeline, nil)
		t.dev.device.DestroyPipelineLayout(pl.layout, nil)
	}
}

// Record fills c with one render pass over target that draws the
// triangle.
func (t *Triangle) Record(c gfx.CommandBuffer, target gfx.RenderTarget) error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	buffer := t.dev.commandPool.MakeCommandBufferFacade(t.dev.cmds.get(c))

	beginInfo := vks.CPtr(arp, &vks.CommandBufferBeginInfo{},
		vks.SetDefaultSType,
	)
	if result := buffer.BeginCommandBuffer(beginInfo); result.IsError() {
		return errors.Wrap(result.AsErr(), "begin command buffer")
	}

	clearValues := []vks.ClearValue{
		vks.MakeClearColorValueFloat32(0., 0., 0., 1.).AsClearValue(),
	}
	renderArea := vks.Rect2D{}.WithExtent(vks.Extent2D{}.
		WithWidth(target.Extent.Width).
		WithHeight(target.Extent.Height))
	passInfo := vks.CPtr(arp, &vks.RenderPassBeginInfo{},
		vks.SetDefaultSType,
		func(in *vks.RenderPassBeginInfo) {
			in.SetRenderPass(t.dev.renderPasses.get(target.RenderPass))
			in.SetFramebuffer(t.dev.framebuffers.get(target.Framebuffer))
			in.SetRenderArea(renderArea)
			in.SetPClearValues(clearValues)
		},
	)

	buffer.CmdBeginRenderPass(passInfo, vks.VK_SUBPASS_CONTENTS_INLINE)
	buffer.CmdBindPipeline(vks.VK_PIPELINE_BIND_POINT_GRAPHICS, t.dev.pipelines.get(target.Pipeline).pipeline)
	buffer.CmdDraw(3, 1, 0, 0)
	buffer.CmdEndRenderPass()

	if result := buffer.EndCommandBuffer(); result.IsError() {
		return errors.Wrap(result.AsErr(), "end command buffer")
	}
	return nil
}
