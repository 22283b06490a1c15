package harvester

import (
	"context"
	"path/filepath"

	"cinodeharvest/internal/reconcile"
	"cinodeharvest/pkg/cache"
	"cinodeharvest/pkg/cinode"
	"cinodeharvest/pkg/storage"
)

// harvestCustomer reports the customer's project claim, then writes its
// own attachments and the attachments of each claimed project below
// <output>/<customer name>.
func (h *Harvester) harvestCustomer(ctx context.Context, customer cinode.Customer, producer *reconcile.Producer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	detail, err := cache.GetOrFetch[cinode.CustomerDetail](ctx, h.cache, h.opts.Endpoints.Customer(customer.ID))
	if err != nil {
		return err
	}
	h.stats.Customers.Add(1)

	if detail.Empty() {
		h.logger.DebugWithFields("Customer has nothing to harvest", map[string]interface{}{
			"customer_id": customer.ID,
			"customer":    customer.Name,
		})
		return nil
	}

	customerID := customer.ID
	if detail.ID != nil {
		customerID = *detail.ID
	}

	if err := producer.Report(ctx, reconcile.Claim{CustomerID: customerID, Projects: detail.Projects}); err != nil {
		return err
	}
	producer.Close()

	dir := filepath.Join(h.opts.OutputDir, storage.SafeSegment(customer.Name))
	if err := h.writeCustomerAttachments(ctx, customerID, detail.Attachments, dir); err != nil {
		return err
	}

	return h.harvestProjects(ctx, detail.Projects, dir)
}

func (h *Harvester) writeCustomerAttachments(ctx context.Context, customerID int, attachments []cinode.Attachment, dir string) error {
	if storage.AlreadyComplete(dir, len(attachments)) {
		h.skipped(dir, len(attachments))
		return nil
	}

	for _, attachment := range attachments {
		if err := ctx.Err(); err != nil {
			return err
		}
		url := h.opts.Endpoints.CustomerAttachment(customerID, attachment.ID)
		if err := h.fetchAndWrite(ctx, url, dir, attachment.IsFile()); err != nil {
			return err
		}
	}
	return nil
}
