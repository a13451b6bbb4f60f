/*
Package vkdraw implements the Vulkan resource and draw-submission layer of a
rendering engine. It owns the mapping from engine level abstractions (textures,
materials, shader programs, mesh renderers) onto native Vulkan objects (images,
image views, samplers, descriptor sets, pipelines, buffers) and records
per-frame draw commands.

The package is built around three cooperating pieces:

A pipeline and descriptor-state cache keyed by content derived fingerprints.
Any change to shader program content, vertex buffer layout or fixed function
draw state changes the fingerprint, so a stale pipeline is never reused.

An image backed texture lifecycle which either owns a dedicated image and
memory, or borrows one from a physical image group allocator. Borrowed images
may be rebuilt between frames by the allocator; every accessor reconciles the
cached handle before it is used.

A descriptor resolution protocol which binds engine uniforms, reflection
derived auto-uniform blocks, material parameters, textures, texel buffers and
storage buffers against a program's reflected binding layout, with a
deterministic fallback chain and per-draw error granularity.

Windowing, swapchain bootstrap and shader compilation are deliberately outside
this package; compiled shader stages arrive as opaque SPIR-V modules plus
reflection metadata.
*/
package vkdraw
