//go:build windows

package webgpu

// WGSL compute shaders for the layer kernels.
// Using string constants instead of embed for simplicity.

// workgroupSize is the number of threads per workgroup in every shader.
const workgroupSize = 256

// fillShader sets every element to params.value.
const fillShader = `
@group(0) @binding(0) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    value: f32,
}
@group(0) @binding(1) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = params.value;
    }
}
`

// axpyShader computes y += alpha * x.
const axpyShader = `
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read_write> y: array<f32>;

struct Params {
    size: u32,
    alpha: f32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        y[idx] = y[idx] + params.alpha * x[idx];
    }
}
`

// activationFns holds the activation kinds shared by the forward and
// backward shaders. Kind numbers follow tensor.Activation.
const activationFns = `
fn activate(kind: u32, x: f32) -> f32 {
    switch kind {
        case 1u: {
            if (x >= 0.0) {
                return 1.0 / (1.0 + exp(-x));
            }
            let e = exp(x);
            return e / (1.0 + e);
        }
        case 2u: {
            return tanh(x);
        }
        case 3u: {
            return max(x, 0.0);
        }
        case 4u: {
            return max(x, 0.0) + log(1.0 + exp(-abs(x)));
        }
        default: {
            return x;
        }
    }
}

fn derivative(kind: u32, y: f32) -> f32 {
    switch kind {
        case 1u: {
            return y * (1.0 - y);
        }
        case 2u: {
            return 1.0 - y * y;
        }
        case 3u: {
            return select(0.0, 1.0, y > 0.0);
        }
        case 4u: {
            return 1.0 - exp(-y);
        }
        default: {
            return 1.0;
        }
    }
}
`

// activationForwardShader writes y = f(x).
const activationForwardShader = activationFns + `
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read_write> y: array<f32>;

struct Params {
    size: u32,
    kind: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        y[idx] = activate(params.kind, x[idx]);
    }
}
`

// activationBackwardShader accumulates dx += f'(y) * dy.
const activationBackwardShader = activationFns + `
@group(0) @binding(0) var<storage, read> y: array<f32>;
@group(0) @binding(1) var<storage, read> dy: array<f32>;
@group(0) @binding(2) var<storage, read_write> dx: array<f32>;

struct Params {
    size: u32,
    kind: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        dx[idx] = dx[idx] + derivative(params.kind, y[idx]) * dy[idx];
    }
}
`

// matchParams is the uniform block of every match shader. lens holds the
// (len0, len1) pair of each batch row.
const matchParams = `
struct Params {
    batch: u32,
    doc_len: u32,
    feat: u32,
    hidden: u32,
    interval: u32,
    pad0: u32,
    pad1: u32,
    pad2: u32,
}

fn rep(b: u32, i: u32) -> u32 {
    return (b * params.doc_len + i) * params.feat;
}

fn out_index(b: u32, h: u32, i: u32, j: u32) -> u32 {
    return ((b * params.hidden + h) * params.doc_len + i) * params.doc_len + j;
}
`

// matchForwardShader computes one output element per thread and zeroes the
// elements outside the window.
const matchForwardShader = matchParams + `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> bb: array<f32>;
@group(0) @binding(2) var<storage, read> w: array<f32>;
@group(0) @binding(3) var<storage, read> lens: array<u32>;
@group(0) @binding(4) var<storage, read_write> result: array<f32>;
@group(0) @binding(5) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    let n = params.doc_len;
    if (idx >= params.batch * params.hidden * n * n) {
        return;
    }
    let j = idx % n;
    let i = (idx / n) % n;
    let h = (idx / (n * n)) % params.hidden;
    let b = idx / (n * n * params.hidden);

    if (i >= lens[2u * b] || j >= lens[2u * b + 1u] || i % params.interval != 0u || j % params.interval != 0u) {
        result[idx] = 0.0;
        return;
    }
    var s: f32 = 0.0;
    for (var f: u32 = 0u; f < params.feat; f = f + 1u) {
        s = s + a[rep(b, i) + f] * bb[rep(b, j) + f] * w[h * params.feat + f];
    }
    result[idx] = s;
}
`

// matchBackwardAShader accumulates the gradient of input 0, one (b,i,f) per thread.
const matchBackwardAShader = matchParams + `
@group(0) @binding(0) var<storage, read> bb: array<f32>;
@group(0) @binding(1) var<storage, read> w: array<f32>;
@group(0) @binding(2) var<storage, read> grad: array<f32>;
@group(0) @binding(3) var<storage, read> lens: array<u32>;
@group(0) @binding(4) var<storage, read_write> da: array<f32>;
@group(0) @binding(5) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.batch * params.doc_len * params.feat) {
        return;
    }
    let f = idx % params.feat;
    let i = (idx / params.feat) % params.doc_len;
    let b = idx / (params.feat * params.doc_len);
    if (i >= lens[2u * b] || i % params.interval != 0u) {
        return;
    }
    var acc: f32 = 0.0;
    for (var j: u32 = 0u; j < lens[2u * b + 1u]; j = j + params.interval) {
        for (var h: u32 = 0u; h < params.hidden; h = h + 1u) {
            acc = acc + grad[out_index(b, h, i, j)] * bb[rep(b, j) + f] * w[h * params.feat + f];
        }
    }
    da[idx] = da[idx] + acc;
}
`

// matchBackwardBShader accumulates the gradient of input 1, one (b,j,f) per thread.
const matchBackwardBShader = matchParams + `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> w: array<f32>;
@group(0) @binding(2) var<storage, read> grad: array<f32>;
@group(0) @binding(3) var<storage, read> lens: array<u32>;
@group(0) @binding(4) var<storage, read_write> db: array<f32>;
@group(0) @binding(5) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.batch * params.doc_len * params.feat) {
        return;
    }
    let f = idx % params.feat;
    let j = (idx / params.feat) % params.doc_len;
    let b = idx / (params.feat * params.doc_len);
    if (j >= lens[2u * b + 1u] || j % params.interval != 0u) {
        return;
    }
    var acc: f32 = 0.0;
    for (var i: u32 = 0u; i < lens[2u * b]; i = i + params.interval) {
        for (var h: u32 = 0u; h < params.hidden; h = h + 1u) {
            acc = acc + grad[out_index(b, h, i, j)] * a[rep(b, i) + f] * w[h * params.feat + f];
        }
    }
    db[idx] = db[idx] + acc;
}
`

// matchBackwardWShader accumulates the weight gradient, one (h,f) per thread.
const matchBackwardWShader = matchParams + `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> bb: array<f32>;
@group(0) @binding(2) var<storage, read> grad: array<f32>;
@group(0) @binding(3) var<storage, read> lens: array<u32>;
@group(0) @binding(4) var<storage, read_write> dw: array<f32>;
@group(0) @binding(5) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.hidden * params.feat) {
        return;
    }
    let f = idx % params.feat;
    let h = idx / params.feat;
    var acc: f32 = 0.0;
    for (var b: u32 = 0u; b < params.batch; b = b + 1u) {
        for (var i: u32 = 0u; i < lens[2u * b]; i = i + params.interval) {
            for (var j: u32 = 0u; j < lens[2u * b + 1u]; j = j + params.interval) {
                acc = acc + grad[out_index(b, h, i, j)] * a[rep(b, i) + f] * bb[rep(b, j) + f];
            }
        }
    }
    dw[idx] = dw[idx] + acc;
}
`
