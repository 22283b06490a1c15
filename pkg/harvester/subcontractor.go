package harvester

import (
	"context"
	"path/filepath"

	"cinodeharvest/pkg/cinode"
	"cinodeharvest/pkg/storage"
)

// harvestSubContractor writes a sub-contractor's attachments into
// <output>/<sub-contractors dir>/<first> <last>
func (h *Harvester) harvestSubContractor(ctx context.Context, sub cinode.SubContractor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.stats.SubContractors.Add(1)

	dir := filepath.Join(h.opts.OutputDir, h.opts.SubContractorsDir, storage.SafeSegment(sub.FullName()))
	if storage.AlreadyComplete(dir, len(sub.Attachments)) {
		h.skipped(dir, len(sub.Attachments))
		return nil
	}

	for _, attachment := range sub.Attachments {
		if err := ctx.Err(); err != nil {
			return err
		}
		url := h.opts.Endpoints.SubContractorAttachment(sub.ID, attachment.ID)
		if err := h.fetchAndWrite(ctx, url, dir, true); err != nil {
			return err
		}
	}
	return nil
}
