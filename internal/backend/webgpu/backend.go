//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/textnet-ml/textnet/internal/tensor"
)

// Backend runs the layer kernels as WGSL compute shaders.
//
// A Backend is safe for concurrent use: compiled kernels are cached under a
// lock and every dispatch owns its buffers.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	mu       sync.Mutex
	compiled map[string]*compiled // by kernel name
}

// compiled is a shader module with its compute pipeline.
type compiled struct {
	module   *wgpu.ShaderModule
	pipeline *wgpu.ComputePipeline
}

var _ tensor.Backend = (*Backend)(nil)

// errNoNative reports a system without the wgpu_native library; the binding
// panics in that case.
var errNoNative = errors.New("webgpu: native library not available")

// New opens the high-performance adapter and its default device.
func New() (backend *Backend, err error) {
	defer func() {
		if r := recover(); r != nil {
			backend, err = nil, errors.Wrapf(errNoNative, "%v", r)
		}
	}()

	b := &Backend{compiled: make(map[string]*compiled)}
	b.instance = wgpu.CreateInstance(nil)
	b.adapter, err = b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		b.Release()
		return nil, errors.Wrap(err, "webgpu: request adapter")
	}
	b.device, err = b.adapter.RequestDevice(nil)
	if err != nil {
		b.Release()
		return nil, errors.Wrap(err, "webgpu: request device")
	}
	if b.queue = b.device.GetQueue(); b.queue == nil {
		b.Release()
		return nil, errors.New("webgpu: device has no queue")
	}
	klog.V(1).Info("webgpu: device ready")
	return b, nil
}

// compile returns the pipeline for name, compiling code on first use.
func (b *Backend) compile(name, code string) *wgpu.ComputePipeline {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.compiled[name]; ok {
		return c.pipeline
	}
	module := b.device.CreateShaderModuleWGSL(code)
	// Auto layout: bindings are read from the shader.
	c := &compiled{module: module, pipeline: b.device.CreateComputePipelineSimple(nil, module, "main")}
	b.compiled[name] = c
	klog.V(2).Infof("webgpu: compiled kernel %s", name)
	return c.pipeline
}

// Release frees the compiled kernels and the device. The backend is unusable
// afterwards. It tolerates a partially initialized backend.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, c := range b.compiled {
		c.pipeline.Release()
		c.module.Release()
		delete(b.compiled, name)
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
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// Name returns "WebGPU".
func (b *Backend) Name() string { return "WebGPU" }

// Device returns tensor.WebGPU.
func (b *Backend) Device() tensor.Device { return tensor.WebGPU }

// IsAvailable reports whether an adapter can be obtained.
func IsAvailable() (available bool) {
	defer func() {
		if recover() != nil {
			available = false
		}
	}()
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}
