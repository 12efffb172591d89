package azure

import (
	"context"
	"fmt"
	"sort"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/sofmeright/edgefreight/src/credentials"
)

// IoTHubResourceType is the generic resource type of an IoT Hub.
const IoTHubResourceType = "Microsoft.Devices/IotHubs"

// ResourceGroups returns the resource group names of the principal's
// subscription, sorted.
func ResourceGroups(ctx context.Context, sp credentials.ServicePrincipal) ([]string, error) {
	conn, err := Connect(sp)
	if err != nil {
		return nil, err
	}
	client, err := armresources.NewResourceGroupsClient(conn.SubscriptionID, conn.Credential, conn.Options)
	if err != nil {
		return nil, fmt.Errorf("creating resource groups client: %w", err)
	}

	var names []string
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing resource groups: %w", err)
		}
		for _, rg := range page.Value {
			if rg != nil && rg.Name != nil {
				names = append(names, *rg.Name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// IoTHubs returns the IoT Hub names in a resource group, sorted.
func IoTHubs(ctx context.Context, sp credentials.ServicePrincipal, resourceGroup string) ([]string, error) {
	conn, err := Connect(sp)
	if err != nil {
		return nil, err
	}
	client, err := armresources.NewClient(conn.SubscriptionID, conn.Credential, conn.Options)
	if err != nil {
		return nil, fmt.Errorf("creating resources client: %w", err)
	}

	opts := &armresources.ClientListByResourceGroupOptions{
		Filter: to.Ptr(fmt.Sprintf("resourceType eq '%s'", IoTHubResourceType)),
	}

	var names []string
	pager := client.NewListByResourceGroupPager(resourceGroup, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing IoT hubs in %s: %w", resourceGroup, err)
		}
		for _, res := range page.Value {
			if res != nil && res.Name != nil {
				names = append(names, *res.Name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}
