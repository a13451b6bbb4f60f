package vkdraw

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

type Queue struct {
	Device      *Device
	QueueFamily *QueueFamily
	VKQueue     vk.Queue
}

func (q *Queue) WaitIdle() error {
	return vk.Error(vk.QueueWaitIdle(q.VKQueue))
}

func (q *Queue) SubmitWaitIdle(buffers ...*CommandBuffer) error {
	var submitInfo = vk.SubmitInfo{}
	submitInfo.SType = vk.StructureTypeSubmitInfo
	submitInfo.CommandBufferCount = uint32(len(buffers))

	b := make([]vk.CommandBuffer, len(buffers))
	for i := range buffers {
		b[i] = buffers[i].VKCommandBuffer
	}

	submitInfo.PCommandBuffers = b

	err := vk.Error(vk.QueueSubmit(q.VKQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence))
	if err != nil {
		return err
	}

	vk.QueueWaitIdle(q.VKQueue)

	return nil
}

func (q *Queue) SubmitWithFence(fence *Fence, buffers ...*CommandBuffer) error {
	var submitInfo = vk.SubmitInfo{}
	submitInfo.SType = vk.StructureTypeSubmitInfo
	submitInfo.CommandBufferCount = uint32(len(buffers))

	b := make([]vk.CommandBuffer, len(buffers))
	for i := range buffers {
		b[i] = buffers[i].VKCommandBuffer
	}

	submitInfo.PCommandBuffers = b

	err := vk.Error(vk.QueueSubmit(q.VKQueue, 1, []vk.SubmitInfo{submitInfo}, fence.VKFence))
	if err != nil {
		return err
	}

	return nil
}

// Submit queues buffers with semaphore ordering: the submission waits on
// each wait semaphore at its paired stage mask and signals every signal
// semaphore on completion. A nil fence submits unfenced.
func (q *Queue) Submit(waits []*Semaphore, waitStages []vk.PipelineStageFlags, signals []*Semaphore, fence *Fence, buffers ...*CommandBuffer) error {
	if len(waits) != len(waitStages) {
		return fmt.Errorf("queue submit: %d wait semaphores with %d stage masks", len(waits), len(waitStages))
	}

	var submitInfo = vk.SubmitInfo{}
	submitInfo.SType = vk.StructureTypeSubmitInfo
	submitInfo.CommandBufferCount = uint32(len(buffers))

	b := make([]vk.CommandBuffer, len(buffers))
	for i := range buffers {
		b[i] = buffers[i].VKCommandBuffer
	}
	submitInfo.PCommandBuffers = b

	if len(waits) > 0 {
		ws := make([]vk.Semaphore, len(waits))
		for i := range waits {
			ws[i] = waits[i].VKSemaphore
		}
		submitInfo.WaitSemaphoreCount = uint32(len(ws))
		submitInfo.PWaitSemaphores = ws
		submitInfo.PWaitDstStageMask = waitStages
	}
	if len(signals) > 0 {
		ss := make([]vk.Semaphore, len(signals))
		for i := range signals {
			ss[i] = signals[i].VKSemaphore
		}
		submitInfo.SignalSemaphoreCount = uint32(len(ss))
		submitInfo.PSignalSemaphores = ss
	}

	vkFence := vk.NullFence
	if fence != nil {
		vkFence = fence.VKFence
	}
	return vk.Error(vk.QueueSubmit(q.VKQueue, 1, []vk.SubmitInfo{submitInfo}, vkFence))
}

func (q *Queue) String() string {
	return fmt.Sprintf("{Device: %s QueueFamily: %s}", q.Device.String(), q.QueueFamily.String())
}
